package catalog

// FallbackDefinitions is the catalog used when hustles.json cannot be read.
func FallbackDefinitions() []Definition {
	return []Definition{
		{
			ID:             "clothing",
			Name:           "Wash Clothes",
			Description:    "Start small by washing clothes for neighbors. Every entrepreneur starts somewhere!",
			Icon:           "🧺",
			BaseIncome:     500,
			BaseCost:       0,
			CostMultiplier: 1.15,
			Automation:     Automation{Timer: 1500, UnlockRequirement: 10},
		},
		{
			ID:             "airtime",
			Name:           "Sell Airtime",
			Description:    "Everyone needs airtime! Set up a small booth and help people stay connected.",
			Icon:           "📱",
			BaseIncome:     2500,
			BaseCost:       30000,
			CostMultiplier: 1.20,
			Automation:     Automation{Timer: 3000, UnlockRequirement: 5},
		},
		{
			ID:             "charging",
			Name:           "Charge Phones",
			Description:    "Power is precious! Offer phone charging services to people whose devices have died.",
			Icon:           "🔋",
			BaseIncome:     10000,
			BaseCost:       200000,
			CostMultiplier: 1.25,
			Automation:     Automation{Timer: 5000, UnlockRequirement: 3},
		},
	}
}

func Fallback() *Catalog {
	c, err := New(FallbackDefinitions())
	if err != nil {
		panic("catalog: fallback definitions invalid: " + err.Error())
	}
	return c
}
