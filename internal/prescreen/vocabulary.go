package prescreen

// Vocabulary holds the word lists the screener looks for in search snippets.
type Vocabulary struct {
	ProfessionalTerms []string `mapstructure:"professional-terms"`
	Qualifiers        []string `mapstructure:"qualifiers"`
}

// DefaultVocabulary returns a fresh copy of the built-in lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		ProfessionalTerms: append([]string(nil), defaultProfessionalTerms...),
		Qualifiers:        append([]string(nil), defaultQualifiers...),
	}
}

// withDefaults fills empty lists from DefaultVocabulary.
func (v Vocabulary) withDefaults() Vocabulary {
	def := DefaultVocabulary()
	if len(v.ProfessionalTerms) == 0 {
		v.ProfessionalTerms = def.ProfessionalTerms
	}
	if len(v.Qualifiers) == 0 {
		v.Qualifiers = def.Qualifiers
	}
	return v
}

var defaultProfessionalTerms = []string{
	// resume and cv
	"resume", "cv", "curriculum vitae", "work experience", "work history",
	"professional profile", "professional summary", "career summary",
	"career objective", "professional background",

	// generic
	"years of experience", "certified", "professional experience",
	"expertise", "proficient in", "experienced in", "skilled in",
	"qualifications", "achievements", "accomplishments",
	"portfolio", "references", "education", "degree",
	"bachelor", "master", "phd", "mba", "graduate",

	// it
	"software engineer", "developer", "programmer", "coder", "github",
	"coding", "programming", "development", "technical skills",
	"full stack", "back end", "front end", "data scientist",

	// engineering
	"mechanical engineer", "civil engineer", "electrical engineer",
	"chemical engineer", "biomedical engineer", "aerospace engineer",
	"industrial engineer", "environmental engineer", "engineering degree",
	"design engineer", "project engineer",

	// healthcare
	"physician", "doctor", "nurse", "pharmacist", "medical",
	"healthcare", "clinical", "patient care", "medical degree",
	"hospital", "clinic", "treatment", "diagnosis", "therapy",

	// finance
	"accountant", "financial analyst", "auditor", "tax", "cpa",
	"accounting", "bookkeeping", "controller", "treasurer",
	"finance manager", "investment", "portfolio manager",

	// legal
	"attorney", "lawyer", "legal counsel", "paralegal",
	"law degree", "jd", "legal experience", "practice",
	"law firm", "legal services",

	// sales and marketing
	"marketing specialist", "sales representative", "account manager",
	"digital marketing", "seo", "social media", "brand manager",
	"product marketing", "market research", "advertising",

	// management
	"manager", "director", "supervisor", "team lead",
	"executive", "chief", "ceo", "cto", "cfo", "coo",
	"vp", "vice president", "head of", "leadership",

	// hr
	"hr", "human resources", "recruiter", "talent acquisition",
	"people operations", "hiring", "employee relations",
	"compensation", "benefits",

	// research
	"scientist", "researcher", "analyst", "laboratory",
	"research and development", "r&d", "postdoctoral",
	"experimentation", "investigation",

	// education
	"teacher", "professor", "instructor", "educator",
	"academic", "teaching experience", "lecturer",
	"faculty", "curriculum", "educational",

	// design
	"designer", "graphic designer", "ux designer", "ui designer",
	"creative director", "art director", "artist",
	"illustrator", "photographer", "videographer",

	// project management
	"project manager", "program manager", "scrum master",
	"agile", "waterfall", "kanban", "project coordination",
	"pmp", "prince2", "project delivery",
}

var defaultQualifiers = []string{
	"programming", "development", "software", "engineer", "developer",
	"specialist", "expert", "professional", "consultant",
	"experience with", "knowledge of", "skills in", "using",
	"certified", "trained in", "proficient", "familiar with",
}
