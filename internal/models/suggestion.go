package models

// SuggestedTimeMode is the time mode proposed by the extraction service.
// Preset holds the raw preset name and is validated on conversion.
type SuggestedTimeMode struct {
	Kind   TimeModeKind `json:"kind"`
	Preset string       `json:"preset,omitempty"`
}

// PlanSuggestion is a structured proposal awaiting confirm or reject
type PlanSuggestion struct {
	Title    string            `json:"title"`
	TimeMode SuggestedTimeMode `json:"time_mode"`
	Memo     *string           `json:"memo,omitempty"`
}

func PeriodSuggestion(title, preset string, memo *string) PlanSuggestion {
	return PlanSuggestion{Title: title, TimeMode: SuggestedTimeMode{Kind: TimeModePeriod, Preset: preset}, Memo: memo}
}

func DeadlineSuggestion(title, preset string, memo *string) PlanSuggestion {
	return PlanSuggestion{Title: title, TimeMode: SuggestedTimeMode{Kind: TimeModeDeadline, Preset: preset}, Memo: memo}
}

func AnytimeSuggestion(title string, memo *string) PlanSuggestion {
	return PlanSuggestion{Title: title, TimeMode: SuggestedTimeMode{Kind: TimeModeAnytime}, Memo: memo}
}
