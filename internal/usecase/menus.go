package usecase

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

const ingredientSeparator = ","

// menuName returns the display name of a menu item. Recommender output uses
// dish_name where stored selections use name.
func menuName(item gjson.Result) string {
	if name := item.Get("name"); name.Exists() {
		return name.String()
	}
	return item.Get("dish_name").String()
}

// selectMenus keeps the items of the menus array whose name is in matched,
// preserving their original JSON and order.
func selectMenus(menus json.RawMessage, matched []string) (json.RawMessage, int, error) {
	parsed := gjson.ParseBytes(menus)
	if !parsed.IsArray() {
		return nil, 0, errors.New("usecase: menu selection is not a JSON array")
	}

	want := make(map[string]struct{}, len(matched))
	for _, name := range matched {
		want[name] = struct{}{}
	}

	var kept []string
	parsed.ForEach(func(_, item gjson.Result) bool {
		if _, ok := want[menuName(item)]; ok {
			kept = append(kept, item.Raw)
		}
		return true
	})
	return json.RawMessage("[" + strings.Join(kept, ",") + "]"), len(kept), nil
}

// collectIngredients flattens the ingredients of every menu into a distinct
// list in first-seen order. A menu's ingredients are either a delimited string
// or an array of strings.
func collectIngredients(menus json.RawMessage) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(raw string) {
		v := strings.TrimSpace(raw)
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	gjson.ParseBytes(menus).ForEach(func(_, item gjson.Result) bool {
		ingredients := item.Get("ingredients")
		switch {
		case ingredients.IsArray():
			ingredients.ForEach(func(_, v gjson.Result) bool {
				add(v.String())
				return true
			})
		case ingredients.Type == gjson.String:
			for _, part := range strings.Split(ingredients.String(), ingredientSeparator) {
				add(part)
			}
		}
		return true
	})
	return out
}

// candidateMenus extracts the dish list from a recommender response, which is
// either a bare array or an object with a dishes array.
func candidateMenus(raw json.RawMessage) (json.RawMessage, int, error) {
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		parsed = parsed.Get("dishes")
	}
	if !parsed.IsArray() {
		return nil, 0, errors.New("usecase: recommender response has no dish list")
	}
	return json.RawMessage(parsed.Raw), len(parsed.Array()), nil
}
