package scorer

// Keyword vocabularies. Matching is a case-insensitive substring test
// against the record's title and category, so short entries such as "app"
// also fire inside longer words.
var (
	// HighValueKeywords signal an established or premium business.
	HighValueKeywords = []string{
		"chain", "group", "international", "global", "enterprise", "corporate",
		"luxury", "premium", "exclusive", "boutique",
		"certified", "licensed", "accredited", "award-winning",
		"established", "since", "years", "decades",
		"online", "digital", "e-commerce", "booking", "app",
		"executive", "vip", "elite", "bespoke", "custom", "personalized",
	}

	// LowValueKeywords signal a small or price-sensitive operation.
	LowValueKeywords = []string{
		"home-based", "freelance", "solo", "one-man",
		"cheap", "budget", "affordable", "discount", "bargain",
		"hobby", "part-time", "side", "casual",
	}

	// HighBudgetCategories are industries that usually spend on marketing.
	HighBudgetCategories = []string{
		"law", "legal", "attorney", "lawyer",
		"investment", "finance", "wealth", "capital",
		"real estate", "property",
		"cosmetic", "plastic surgery", "medical",
		"luxury", "premium",
		"tech", "software", "saas", "fintech",
		"consulting", "advisory",
	}

	// LowBudgetCategories are industries that rarely do.
	LowBudgetCategories = []string{
		"daycare", "babysitter", "nanny", "tutor", "coaching",
		"salon", "barber", "laundry", "dry clean",
	}
)
