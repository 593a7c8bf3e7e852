package main

import "fmt"

// parseSystemPrompt instructs the model to emit the task document
// shape. The extractor tolerates deviations; the prompt just stacks
// the odds.
const parseSystemPrompt = `You are a technical project planner. Given a product
requirements document, produce a JSON object of the form:

{
  "tasks": [
    {
      "id": 1,
      "title": "...",
      "description": "...",
      "status": "pending",
      "priority": "high" | "medium" | "low",
      "dependencies": [<ids of tasks that must be done first>],
      "details": "...",
      "testStrategy": "..."
    }
  ]
}

Number tasks sequentially from 1. Dependencies may only reference
earlier tasks. Respond with JSON only, no prose.`

// expandSystemPrompt instructs the model to emit a subtask array.
const expandSystemPrompt = `You are a technical project planner. Break the given
task into subtasks. Produce a JSON array of the form:

[
  {
    "id": 1,
    "title": "...",
    "description": "...",
    "dependencies": [],
    "details": "..."
  }
]

Respond with JSON only, no prose.`

func parseUserPrompt(prd string, numTasks int) string {
	return fmt.Sprintf("Produce exactly %d tasks from the following requirements document:\n\n%s", numTasks, prd)
}

func expandUserPrompt(title, description, details string, numSubtasks int) string {
	return fmt.Sprintf("Break the following task into exactly %d subtasks.\n\nTitle: %s\nDescription: %s\nDetails: %s",
		numSubtasks, title, description, details)
}
