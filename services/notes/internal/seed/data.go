package seed

import "strings"

// Labels are created for every seeded account.
var Labels = []string{"Coffee", "Shopping", "Recipes", "Work", "Personal", "Ideas"}

type starter struct {
	title    string
	content  string
	archived bool
	deleted  bool
	labels   []string
}

var starterNotes = []starter{
	{title: "Espresso Journal", content: `<p>Trying a new single-origin espresso today.</p><p>Notes: juicy, blackberry, cocoa finish.</p>`, labels: []string{"Coffee"}},
	{title: "Dial-in: 18g in / 36g out", content: `<p>Recipe:</p><p>18g in · 36g out · 28s · 93°C</p><p>Adjust grind finer if sour.</p>`, labels: []string{"Coffee", "Ideas"}},
	{title: "Grocery list", content: taskList(task{"Milk", false}, task{"Eggs", false}, task{"Tomatoes", false}, task{"Olive oil", true}), labels: []string{"Shopping"}},
	{title: "Pasta alla vodka", content: `<p>Ingredients:</p><p>Tomato paste, vodka, cream, chili flakes, parmesan.</p><p>Finish with basil.</p>`, labels: []string{"Recipes"}},
	{title: "Weekend brunch", content: `<p>Plan: pancakes, eggs benedict, fresh fruit.</p><p>Prep list: batter, hollandaise, berries, coffee.</p>`, archived: true, labels: []string{"Personal", "Recipes"}},
	{title: "Project kickoff", content: `<p>Agenda: scope, milestones, risks, owners.</p><p>Questions: decision log, comms cadence.</p><p>Next: draft timeline.</p>`, archived: true, labels: []string{"Work"}},
	{title: "Coffee gear wishlist", content: `<p>58mm tamper, VST basket, distribution tool.</p>`, labels: []string{"Coffee", "Ideas"}},
	{title: "Trash: old reminder", content: `<p>Cancel dentist appointment.</p><p>Reschedule for next month.</p>`, deleted: true, labels: []string{"Personal"}},
	{title: "Trash: shopping draft", content: `<p>Store run: cereal, yogurt, coffee filters.</p><p>Check discounts on oat milk.</p>`, deleted: true, labels: []string{"Shopping"}},
	{title: "Meeting notes", content: `<p>Decisions: finalize UI, confirm timeline, assign QA.</p>`, labels: []string{"Work"}},
	{title: "Ethiopia washed espresso", content: `<p>Floral aroma, peach, bergamot.</p><p>Grind slightly finer for sweetness.</p>`, labels: []string{"Coffee"}},
	{title: "Iced latte ratios", content: `<p>1:2 espresso to milk, add ice last.</p>`, labels: []string{"Coffee"}},
	{title: "Super list: pantry", content: taskList(task{"Rice", false}, task{"Beans", false}, task{"Pasta", false}), labels: []string{"Shopping"}},
	{title: "Recipe: Tomato soup", content: `<p>Roast tomatoes, blend with garlic and onion, finish with cream.</p>`, labels: []string{"Recipes"}},
	{title: "Weekly goals", content: `<p>Ship label UI, fix drag edge case, write docs.</p>`, labels: []string{"Work", "Ideas"}},
	{title: "Ideas: espresso bar layout", content: `<p>Floating shelf, tamp station, cup rail.</p>`, labels: []string{"Ideas", "Coffee"}},
	{title: "Archive: summer menu", content: `<p>Cold brew, affogato, citrus spritz.</p><p>Consider adding tonic espresso.</p>`, archived: true, labels: []string{"Coffee"}},
	{title: "Archive: grocery pricing", content: `<p>Track weekly prices for staples.</p><p>Note seasonal swings for produce.</p><p>Compare two nearby stores.</p>`, archived: true, labels: []string{"Shopping"}},
	{title: "Trash: old recipe", content: `<p>Delete this draft recipe.</p><p>Too salty, needs retest.</p>`, deleted: true, labels: []string{"Recipes"}},
	{title: "Trash: canceled task", content: `<p>Remove unused task list.</p><p>No longer needed after scope change.</p>`, deleted: true, labels: []string{"Work"}},
	{title: "Pour over notes", content: `<p>15g coffee, 250g water, 2:45 total time.</p>`, labels: []string{"Coffee"}},
	{title: "Quick lunch ideas", content: `<p>Caprese sandwich, avocado toast, miso soup.</p>`, labels: []string{"Personal", "Recipes"}},
	{title: "Recipe: Overnight oats", content: `<p>Oats, milk, chia, honey. Rest overnight.</p>`, labels: []string{"Recipes"}},
	{title: "Weekly errands", content: taskList(task{"Post office", false}, task{"Pick up meds", false}), labels: []string{"Personal", "Shopping"}},
	{title: "Design backlog", content: `<p>Sidebar spacing, label popup, theme contrast.</p>`, labels: []string{"Work"}},
	{title: "Recipe: Lemon pasta", content: `<p>Lemon zest, olive oil, garlic, parmesan.</p>`, labels: []string{"Recipes"}},
	{title: "Coffee: grinder cleanup", content: `<p>Brush burrs, vacuum chute, wipe hopper.</p>`, labels: []string{"Coffee"}},
	{title: "Archive: travel checklist", content: `<p>Passport, chargers, headphones, adapter.</p><p>Pack meds, sunglasses, water bottle.</p>`, archived: true, labels: []string{"Personal"}},
	{title: "Trash: old idea", content: `<p>Drop this feature experiment.</p><p>Didn't fit the UX direction.</p>`, deleted: true, labels: []string{"Ideas"}},
	{title: "Shopping: weekend market", content: `<p>Berries, sourdough, fresh herbs.</p>`, labels: []string{"Shopping"}},
}

type task struct {
	text    string
	checked bool
}

// taskList renders checklist items in the editor's task list markup.
func taskList(items ...task) string {
	var b strings.Builder
	b.WriteString(`<ul data-type="taskList">`)
	for _, it := range items {
		if it.checked {
			b.WriteString(`<li data-type="taskItem" data-checked="true"><label><input type="checkbox" checked="checked" /><span></span></label><div><p>`)
		} else {
			b.WriteString(`<li data-type="taskItem" data-checked="false"><label><input type="checkbox" /><span></span></label><div><p>`)
		}
		b.WriteString(it.text)
		b.WriteString(`</p></div></li>`)
	}
	b.WriteString(`</ul>`)
	return b.String()
}
