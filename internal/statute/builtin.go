package statute

import "github.com/Twixes/mcpolice/internal/model"

var international = []string{"International"}

// builtin is the default statute table, in presentation order
var builtin = []model.StatuteInfo{
	{
		Organization: "ICC",
		Article:      "Rome Statute Article 6",
		Description:  "Genocide: acts committed with intent to destroy, in whole or in part, a national, ethnical, racial or religious group",
		Severity:     model.SeverityCritical,
		Jurisdiction: international,
	},
	{
		Organization: "ICC",
		Article:      "Rome Statute Article 7",
		Description:  "Crimes against humanity: widespread or systematic attack directed against any civilian population",
		Severity:     model.SeverityCritical,
		Jurisdiction: international,
	},
	{
		Organization: "ICC",
		Article:      "Rome Statute Article 8",
		Description:  "War crimes: grave breaches of the Geneva Conventions and serious violations of the laws of armed conflict",
		Severity:     model.SeverityCritical,
		Jurisdiction: international,
	},
	{
		Organization: "ICC",
		Article:      "Rome Statute Article 8 bis",
		Description:  "Crime of aggression: planning or executing an act of aggression in manifest violation of the UN Charter",
		Severity:     model.SeverityCritical,
		Jurisdiction: international,
	},
	{
		Organization: "UN",
		Article:      "Convention against Torture Article 1",
		Description:  "Torture: intentional infliction of severe pain or suffering by or with the consent of a public official",
		Severity:     model.SeverityCritical,
		Jurisdiction: international,
	},
	{
		Organization: "UN",
		Article:      "ICCPR Article 20",
		Description:  "Propaganda for war and advocacy of national, racial or religious hatred constituting incitement",
		Severity:     model.SeverityHigh,
		Jurisdiction: international,
	},
	{
		Organization: "UN",
		Article:      "UDHR Article 12",
		Description:  "Arbitrary interference with privacy, family, home or correspondence, or attacks on honour and reputation",
		Severity:     model.SeverityMedium,
		Jurisdiction: international,
	},
	{
		Organization: "UN",
		Article:      "UDHR Article 19",
		Description:  "Interference with freedom of opinion and expression",
		Severity:     model.SeverityMedium,
		Jurisdiction: international,
	},
	{
		Organization: "European Union",
		Article:      "EU AI Act Article 5",
		Description:  "Prohibited AI practices: manipulative techniques, exploitation of vulnerabilities, social scoring",
		Severity:     model.SeverityCritical,
		Jurisdiction: []string{"EU"},
	},
	{
		Organization: "European Union",
		Article:      "GDPR Article 5",
		Description:  "Processing of personal data in breach of lawfulness, fairness, transparency or purpose limitation",
		Severity:     model.SeverityHigh,
		Jurisdiction: []string{"EU", "EEA"},
	},
	{
		Organization: "European Union",
		Article:      "GDPR Article 9",
		Description:  "Processing of special categories of personal data without a lawful exception",
		Severity:     model.SeverityHigh,
		Jurisdiction: []string{"EU", "EEA"},
	},
	{
		Organization: "Council of Europe",
		Article:      "ECHR Article 8",
		Description:  "Interference with the right to respect for private and family life",
		Severity:     model.SeverityMedium,
		Jurisdiction: []string{"Council of Europe"},
	},
	{
		Organization: "FTC",
		Article:      "FTC Act Section 5",
		Description:  "Unfair or deceptive acts or practices in or affecting commerce",
		Severity:     model.SeverityMedium,
		Jurisdiction: []string{"United States"},
	},
	{
		Organization: "FTC",
		Article:      "COPPA Section 1303",
		Description:  "Collection of personal information from children under 13 without verifiable parental consent",
		Severity:     model.SeverityHigh,
		Jurisdiction: []string{"United States"},
	},
	{
		Organization: "FTC",
		Article:      "CAN-SPAM Act Section 5",
		Description:  "False or misleading header information in commercial electronic mail",
		Severity:     model.SeverityLow,
		Jurisdiction: []string{"United States"},
	},
}
