package llm

import "fmt"

const classifySystem = `You watch the terminal of an AI coding agent and report whether it is busy or waiting for a human.`

// classifyPrompt asks for a status reading of a snapshot.
const classifyPrompt = `Below is the tail of a terminal running an AI coding agent CLI.

Decide the agent's status:
- "processing": it is actively working (spinners, "esc to interrupt", streaming tool output)
- "waiting_for_input": it stopped and needs the user (a question, a permission or choice menu, an idle input prompt after finishing)
- "unknown": you cannot tell

Respond with ONLY a JSON object, no prose:
{"status": "processing" | "waiting_for_input" | "unknown", "confidence": <number 0..1>, "issues": [<short strings describing anything that made this hard>]}

Terminal:
<<<
%s
>>>`

const extractSystem = `You extract the single pending question an AI coding agent is asking its user, from a window of its terminal.`

// extractPrompt asks for a structured question from one context window.
const extractPrompt = `Below are the last %d lines of a terminal running an AI coding agent CLI. Decorative noise was removed and questions the user already answered were dropped.

Find the final unanswered question or request for input, if any.

Rules:
1. "message_type" is "choice" (numbered or lettered options), "confirmation" (yes/no or permission), "open_ended" (free text answer), or "idle" (no pending question; the agent just finished)
2. "message_text" is the question itself, rewritten as one or two plain sentences without terminal decoration
3. "options" lists the choices exactly as offered, empty otherwise
4. "fingerprint" is a short lowercase key identifying this question (e.g. "approve-bash-rm-build")
5. "context_complete" is false when the question or its options are cut off at the top of the window and more lines are needed
6. "last_action" briefly says what the agent did last, only for "idle"

Respond with ONLY a JSON object, no prose:
{"has_question": <bool>, "message_type": "...", "message_text": "...", "options": ["..."], "fingerprint": "...", "context_complete": <bool>, "last_action": "..."}

Terminal:
<<<
%s
>>>`

func buildClassifyPrompt(snapshot string) string {
	return fmt.Sprintf(classifyPrompt, snapshot)
}

func buildExtractPrompt(window string, lines int) string {
	return fmt.Sprintf(extractPrompt, lines, window)
}
