package model

const (
	SettingTheme            = "theme"
	SettingCardSize         = "card_size"
	SettingDefaultSort      = "default_sort"
	SettingDefaultSortOrder = "default_sort_order"
)

// Settings are a user's preferences keyed by setting name.
type Settings map[string]string

// DefaultSettings is what a user sees before changing anything.
func DefaultSettings() Settings {
	return Settings{
		SettingTheme:            "auto",
		SettingCardSize:         "medium",
		SettingDefaultSort:      "created_at",
		SettingDefaultSortOrder: "desc",
	}
}
