package game

import "fmt"

// Advise picks a one-line tip for the player's current position.
func Advise(e *Engine) string {
	s := e.State()
	ips := e.IncomePerSecond()

	var unlocked []string
	for _, def := range e.catalog.All() {
		if hs, ok := s.Hustles[def.ID]; ok && hs != nil && hs.IsUnlocked {
			unlocked = append(unlocked, def.ID)
		}
	}

	switch {
	case ips == 0 && s.Money < 50000:
		return "You're just starting out. Focus on upgrading your first hustle to build a steady income stream. Manual clicks are key right now!"
	case len(unlocked) == 1:
		return "Your first hustle is running! Try to unlock the next one to diversify your income streams and grow your empire faster."
	case ips > 10000 && len(unlocked) > 1:
		top := unlocked[0]
		for _, id := range unlocked[1:] {
			if e.Income(id) > e.Income(top) {
				top = id
			}
		}
		def, _ := e.catalog.Get(top)
		return fmt.Sprintf("Your income is growing steadily! Your %q hustle is your top earner. Keep upgrading it for maximum profit.", def.Name)
	case s.Money > 1000000:
		return "You're making serious cash! Remember to reinvest in your hustles. Automation is the key to passive income. Make sure your top earners are automated."
	}
	return "The streets are tough, but you're tougher. Look for the hustle with the best return on investment and focus your upgrades there."
}
