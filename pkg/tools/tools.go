package tools

// QueryPastSolutions declares the Simulator's resident-history tool. The
// Simulator does not send this definition to the model: it calls
// reqstore.Client directly and puts a summary of the history in its prompt.
func QueryPastSolutions() Tool {
	return Tool{
		Type: "function",
		Function: &FunctionDefinition{
			Name:        "query_past_solutions",
			Description: "Look up a resident's previously resolved requests",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"resident_id": map[string]any{"type": "string"},
				},
				"required": []string{"resident_id"},
			},
		},
	}
}

// CheckRecurringIssues declares the Simulator's recurrence-detection tool.
func CheckRecurringIssues() Tool {
	return Tool{
		Type: "function",
		Function: &FunctionDefinition{
			Name:        "check_recurring_issues",
			Description: "Count how often a resident has reported the same category recently",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"resident_id": map[string]any{"type": "string"},
					"category":    map[string]any{"type": "string"},
				},
				"required": []string{"resident_id", "category"},
			},
		},
	}
}
