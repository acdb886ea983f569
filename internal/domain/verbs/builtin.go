package verbs

// adl is the common prefix of the standard verb vocabulary.
const adl = "http://adlnet.gov/expapi/verbs/"

// builtinTable returns the fixed verb table compiled into the process.
func builtinTable() map[string]Entry {
	entries := []Entry{
		{ID: adl + "initialized", Category: CategoryProgress, Action: ActionMarkStarted, Description: "started a session"},
		{ID: adl + "launched", Category: CategoryProgress, Action: ActionMarkStarted, Description: "launched the activity"},
		{ID: adl + "attempted", Category: CategoryProgress, Action: ActionMarkStarted, Description: "attempted the activity"},
		{ID: adl + "resumed", Category: CategoryProgress, Action: ActionMarkStarted, Description: "resumed a suspended session"},
		{ID: adl + "progressed", Category: CategoryProgress, Action: ActionTrackProgress, Description: "made progress"},
		{ID: adl + "experienced", Category: CategoryProgress, Action: ActionTrackProgress, Description: "experienced content"},
		{ID: adl + "completed", Category: CategoryCompletion, Action: ActionMarkCompleted, Description: "completed the activity"},
		{ID: adl + "passed", Category: CategoryCompletion, Action: ActionMarkPassed, Description: "passed the activity"},
		{ID: adl + "mastered", Category: CategoryCompletion, Action: ActionMarkPassed, Description: "mastered the activity"},
		{ID: adl + "failed", Category: CategoryCompletion, Action: ActionMarkFailed, Description: "failed the activity"},
		{ID: adl + "satisfied", Category: CategoryCompletion, Action: ActionMarkCompleted, Description: "satisfied the objective"},
		{ID: adl + "answered", Category: CategoryInteraction, Action: ActionTrackInteraction, Description: "answered a question"},
		{ID: adl + "interacted", Category: CategoryInteraction, Action: ActionTrackInteraction, Description: "interacted with content"},
		{ID: adl + "responded", Category: CategoryInteraction, Action: ActionTrackInteraction, Description: "responded to a prompt"},
		{ID: adl + "commented", Category: CategoryInteraction, Action: ActionTrackInteraction, Description: "left a comment"},
		{ID: adl + "scored", Category: CategoryInteraction, Action: ActionTrackInteraction, Description: "received a score"},
		{ID: adl + "terminated", Category: CategoryInteraction, Action: ActionTrackVerb, Description: "ended a session"},
		{ID: adl + "suspended", Category: CategoryInteraction, Action: ActionTrackVerb, Description: "suspended a session"},
		{ID: adl + "exited", Category: CategoryInteraction, Action: ActionTrackVerb, Description: "exited the activity"},
		{ID: adl + "abandoned", Category: CategoryInteraction, Action: ActionTrackVerb, Description: "abandoned a session"},
		{ID: adl + "voided", Category: CategoryInteraction, Action: ActionTrackVerb, Description: "voided a statement"},
		{ID: "http://id.tincanapi.com/verb/downloaded", Category: CategoryInteraction, Action: ActionTrackDownload, Description: "downloaded a file"},
		{ID: "http://id.tincanapi.com/verb/viewed", Category: CategoryInteraction, Action: ActionTrackInteraction, Description: "viewed content"},
	}

	table := make(map[string]Entry, len(entries))
	for _, e := range entries {
		table[e.ID] = e
	}
	return table
}
