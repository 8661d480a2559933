package sources

// Builtins returns the sources shipped with the tool. Each entry is a
// fresh value so callers can mutate their copy safely.
//
// Curated list verification dates record when each URL set was last
// checked against the live site by hand. Update them when touching a
// list.
func Builtins() []*Source {
	return []*Source{
		{
			ID:         "fedramp",
			Label:      "FedRAMP Rev 5 Documents & Templates",
			Kind:       KindPage,
			Pages:      []string{"https://www.fedramp.gov/rev5/documents-templates/"},
			Extensions: []string{"pdf", "doc", "docx", "xlsx", "xls", "zip"},
			Referer:    "https://www.fedramp.gov/",
		},
		{
			ID:           "nist-sp",
			Label:        "NIST Special Publications (800 series)",
			Kind:         KindPaged,
			PageTemplate: "https://csrc.nist.gov/publications/sp800?page={page}",
			LinkPattern:  `nvlpubs\.nist\.gov/nistpubs/`,
			Extensions:   []string{"pdf"},
			Referer:      "https://csrc.nist.gov/publications",
			// Final publications get new filenames per revision
			Immutable: true,
		},
		{
			ID:              "cmmc",
			Label:           "CMMC Model Documentation",
			Kind:            KindPage,
			Pages:           []string{"https://dodcio.defense.gov/cmmc/Resources-Documentation/"},
			Extensions:      []string{"pdf", "doc", "docx"},
			Referer:         "https://dodcio.defense.gov/cmmc/",
			BrowserRequired: true,
		},
		{
			ID:        "disa-stig",
			Label:     "DISA STIG Compilation Library",
			Kind:      KindProbe,
			Referer:   "https://www.cyber.mil/stigs/downloads",
			Immutable: true,
			Probe: &ProbeSpec{
				BaseURL:      "https://dl.dod.cyber.mil/wp-content/uploads/stigs/zip/",
				NameTemplate: "U_SRG-STIG_Library_{month}_{year}.zip",
			},
		},
		{
			ID:    "hipaa",
			Label: "HIPAA Security Rule & Guidance",
			Kind:  KindPage,
			Pages: []string{
				"https://www.hhs.gov/hipaa/for-professionals/security/guidance/index.html",
			},
			Extensions: []string{"pdf"},
			Fallback: &FallbackSpec{
				VerifiedAt: "2026-03-01",
				Docs: []CuratedDoc{
					{
						Name: "HIPAA Security Rule",
						URL:  "https://www.hhs.gov/sites/default/files/ocr/privacy/hipaa/administrative/securityrule/securityrulepdf.pdf",
					},
					{
						Name: "Security Series 1: Security 101 for Covered Entities",
						URL:  "https://www.hhs.gov/sites/default/files/ocr/privacy/hipaa/administrative/securityrule/security1.pdf",
					},
					{
						Name: "Security Series 2: Policies, Procedures and Documentation",
						URL:  "https://www.hhs.gov/sites/default/files/ocr/privacy/hipaa/administrative/securityrule/security2.pdf",
					},
					{
						Name: "Security Series 3: Administrative Safeguards",
						URL:  "https://www.hhs.gov/sites/default/files/ocr/privacy/hipaa/administrative/securityrule/security3.pdf",
					},
					{
						Name: "Security Series 4: Technical Safeguards",
						URL:  "https://www.hhs.gov/sites/default/files/ocr/privacy/hipaa/administrative/securityrule/security4.pdf",
					},
					{
						Name: "Security Series 5: Organizational Requirements",
						URL:  "https://www.hhs.gov/sites/default/files/ocr/privacy/hipaa/administrative/securityrule/security5.pdf",
					},
					{
						Name: "Security Series 6: Risk Analysis and Management",
						URL:  "https://www.hhs.gov/sites/default/files/ocr/privacy/hipaa/administrative/securityrule/security6.pdf",
					},
					{
						Name: "Security Series 7: Implementation for the Small Provider",
						URL:  "https://www.hhs.gov/sites/default/files/ocr/privacy/hipaa/administrative/securityrule/security7.pdf",
					},
				},
			},
		},
		{
			ID:          "cjis",
			Label:       "FBI CJIS Security Policy",
			Kind:        KindPage,
			Pages:       []string{"https://le.fbi.gov/cjis/cjis-security-policy-resource-center"},
			LinkPattern: `(?i)cjis_security_policy`,
			Extensions:  []string{"pdf"},
			Fallback: &FallbackSpec{
				VerifiedAt: "2026-03-01",
				Docs: []CuratedDoc{
					{
						Name: "CJIS Security Policy v6.0",
						URL:  "https://le.fbi.gov/file-repository/cjis_security_policy_v6-0_20241227.pdf",
					},
				},
			},
		},
		{
			ID:          "cisa-bod",
			Label:       "CISA Binding Operational Directives",
			Kind:        KindPage,
			Pages:       []string{"https://www.cisa.gov/directives"},
			LinkPattern: `cisa\.gov/news-events/directives/`,
			Referer:     "https://www.cisa.gov/",
			// Directives are HTML detail pages, not documents; no
			// extension filter applies.
			Fallback: &FallbackSpec{
				VerifiedAt: "2026-02-26",
				Docs: []CuratedDoc{
					{
						Name: "BOD 26-02: Mitigating Risk from End-of-Support Edge Devices",
						URL:  "https://www.cisa.gov/news-events/directives/bod-26-02-mitigating-risk-end-support-edge-devices",
					},
					{
						Name: "BOD 25-01: Implementing Secure Practices for Cloud Services",
						URL:  "https://www.cisa.gov/news-events/directives/bod-25-01-implementing-secure-practices-cloud-services",
					},
					{
						Name: "BOD 25-01 Implementation Guidance",
						URL:  "https://www.cisa.gov/news-events/directives/bod-25-01-implementation-guidance-implementing-secure-practices-cloud-services",
					},
					{
						Name: "BOD 23-02: Mitigating Risk from Internet-Exposed Management Interfaces",
						URL:  "https://www.cisa.gov/news-events/directives/binding-operational-directive-23-02",
					},
					{
						Name: "BOD 23-02 Implementation Guidance",
						URL:  "https://www.cisa.gov/news-events/directives/bod-23-02-implementation-guidance-mitigating-risk-internet-exposed-management-interfaces",
					},
					{
						Name: "BOD 23-01: Improving Asset Visibility and Vulnerability Detection",
						URL:  "https://www.cisa.gov/news-events/directives/bod-23-01-improving-asset-visibility-and-vulnerability-detection-federal-networks",
					},
					{
						Name: "BOD 23-01 Implementation Guidance",
						URL:  "https://www.cisa.gov/news-events/directives/bod-23-01-implementation-guidance-improving-asset-visibility-and-vulnerability-detection-federal",
					},
					{
						Name: "BOD 22-01: Reducing the Significant Risk of Known Exploited Vulnerabilities",
						URL:  "https://www.cisa.gov/news-events/directives/bod-22-01-reducing-significant-risk-known-exploited-vulnerabilities",
					},
					{
						Name: "BOD 20-01: Develop and Publish a Vulnerability Disclosure Policy",
						URL:  "https://www.cisa.gov/news-events/directives/bod-20-01-develop-and-publish-vulnerability-disclosure-policy",
					},
					{
						Name: "BOD 19-02: Vulnerability Remediation Requirements",
						URL:  "https://www.cisa.gov/news-events/directives/bod-19-02-vulnerability-remediation-requirements-internet-accessible-systems",
					},
					{
						Name: "BOD 18-02: Securing High Value Assets",
						URL:  "https://www.cisa.gov/news-events/directives/bod-18-02-securing-high-value-assets",
					},
					{
						Name: "BOD 18-01: Enhance Email and Web Security",
						URL:  "https://www.cisa.gov/news-events/directives/bod-18-01-enhance-email-and-web-security",
					},
					{
						Name: "BOD 17-01: Removal of Kaspersky-Branded Products",
						URL:  "https://www.cisa.gov/news-events/directives/bod-17-01-removal-kaspersky-branded-products",
					},
					{
						Name: "BOD 16-03: 2016 Agency Cybersecurity Reporting Requirements",
						URL:  "https://www.cisa.gov/news-events/directives/bod-16-03-2016-agency-cybersecurity-reporting-requirements",
					},
					{
						Name: "BOD 16-02: Threat to Network Infrastructure Devices",
						URL:  "https://www.cisa.gov/news-events/directives/bod-16-02-threat-network-infrastructure-devices",
					},
					{
						Name: "BOD 16-01: Securing High Value Assets (superseded)",
						URL:  "https://www.cisa.gov/news-events/directives/binding-operational-directive-16-01",
					},
					{
						Name: "BOD 15-01: Critical Vulnerability Mitigation",
						URL:  "https://www.cisa.gov/news-events/directives/binding-operational-directive-15-01",
					},
				},
			},
		},
		{
			ID:    "cisa-kev",
			Label: "CISA Known Exploited Vulnerabilities Catalog",
			Kind:  KindCurated,
			Fallback: &FallbackSpec{
				VerifiedAt: "2026-02-26",
				Docs: []CuratedDoc{
					{
						Name: "Known Exploited Vulnerabilities Catalog (CSV)",
						URL:  "https://www.cisa.gov/sites/default/files/csv/known_exploited_vulnerabilities.csv",
					},
					{
						Name: "Known Exploited Vulnerabilities Catalog (JSON)",
						URL:  "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json",
					},
				},
			},
		},
		{
			ID:    "cisa-zt",
			Label: "CISA Zero Trust Maturity Model",
			Kind:  KindCurated,
			Fallback: &FallbackSpec{
				VerifiedAt: "2026-03-01",
				Docs: []CuratedDoc{
					{
						Name: "CISA Zero Trust Maturity Model v2.0",
						URL:  "https://www.cisa.gov/sites/default/files/2023-04/zero_trust_maturity_model_v2_508.pdf",
					},
				},
			},
		},
		{
			ID:    "omb",
			Label: "OMB Cybersecurity Memoranda",
			Kind:  KindCurated,
			Fallback: &FallbackSpec{
				VerifiedAt: "2026-03-01",
				Docs: []CuratedDoc{
					{
						Name: "M-21-31: Improving Investigative and Remediation Capabilities",
						URL:  "https://www.whitehouse.gov/wp-content/uploads/2021/08/M-21-31-Improving-the-Federal-Governments-Investigative-and-Remediation-Capabilities-Related-to-Cybersecurity-Incidents.pdf",
					},
					{
						Name: "M-22-09: Moving the U.S. Government Toward Zero Trust",
						URL:  "https://www.whitehouse.gov/wp-content/uploads/2022/01/M-22-09.pdf",
					},
					{
						Name: "M-25-04: FY 2025 Federal Information Security Requirements",
						URL:  "https://www.whitehouse.gov/wp-content/uploads/2025/01/M-25-04-Fiscal-Year-2025-Guidance-on-Federal-Information-Security-and-Privacy-Management-Requirements.pdf",
					},
				},
			},
		},
		{
			// The ZT strategy is mirrored publicly on DTIC; the rest of
			// the library sits behind a WAF that rejects every
			// automated client, headless browsers included.
			ID:    "dod-zt",
			Label: "DoD Zero Trust Reference Documents",
			Kind:  KindCurated,
			Fallback: &FallbackSpec{
				VerifiedAt: "2026-03-01",
				Docs: []CuratedDoc{
					{
						Name: "DoD Zero Trust Strategy",
						URL:  "https://apps.dtic.mil/sti/trecms/pdf/AD1205814.pdf",
					},
				},
			},
			Manual: []ManualDoc{
				{
					Name:     "DoD Zero Trust Reference Architecture v2.0",
					URL:      "https://dodcio.defense.gov/Portals/0/Documents/Library/(U)ZT_RA_v2.0(U)_Sep22.pdf",
					Guidance: "download in a browser from https://dodcio.defense.gov/Library/ and place under content/dod-zt/",
				},
				{
					Name:     "DoDI 8500.01 Cybersecurity",
					URL:      "https://www.esd.whs.mil/Portals/54/Documents/DD/issuances/dodi/850001p.pdf",
					Guidance: "download in a browser from https://www.esd.whs.mil/Directives/issuances/dodi/ and place under content/dod-zt/",
				},
				{
					Name:     "DoDI 8510.01 Risk Management Framework",
					URL:      "https://www.esd.whs.mil/Portals/54/Documents/DD/issuances/dodi/851001p.pdf",
					Guidance: "download in a browser from https://www.esd.whs.mil/Directives/issuances/dodi/ and place under content/dod-zt/",
				},
			},
		},
		{
			ID:         "owasp-asvs",
			Label:      "OWASP Application Security Verification Standard",
			Kind:       KindGitHub,
			Extensions: []string{"pdf", "csv", "docx"},
			GitHub: &GitHubSpec{
				Repo:     "OWASP/ASVS",
				Releases: true,
			},
			Fallback: &FallbackSpec{
				VerifiedAt: "2026-03-01",
				Docs: []CuratedDoc{
					{
						Name: "OWASP ASVS 5.0.0 (English PDF)",
						URL:  "https://github.com/OWASP/ASVS/releases/download/v5.0.0/OWASP_Application_Security_Verification_Standard_5.0.0_en.pdf",
					},
				},
			},
		},
		{
			ID:         "nist-oscal",
			Label:      "NIST OSCAL Content (JSON catalogs)",
			Kind:       KindGitHub,
			Extensions: []string{"json"},
			GitHub: &GitHubSpec{
				Repo: "usnistgov/oscal-content",
				Paths: []string{
					"nist.gov/SP800-53/rev5/json",
					"nist.gov/SP800-171/rev3/json",
					"nist.gov/SP800-218/ver1/json",
					"nist.gov/CSF/v2.0/json",
				},
			},
			Immutable: true,
		},
	}
}
