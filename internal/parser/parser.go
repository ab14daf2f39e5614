package parser

import (
	"bufio"
	"strconv"
	"strings"
)

var dialogueHeuristicSplit = ": "

// ParseReply deterministically converts reply into an ordered list of steps
// plus the aggregated delta bundle (spec §4.2). It never fails: unmatched
// markers are coerced to narration.
func ParseReply(reply string) *Result {
	res := &Result{Deltas: NewDeltas()}

	var inHint bool
	var hintIdx int // index into res.Steps of the currently-open hint step

	var inChoice bool
	var choiceIdx int
	var choiceDescLines []string

	closeChoice := func() {
		if !inChoice {
			return
		}
		res.Steps[choiceIdx].ChoiceDescription = strings.TrimSpace(strings.Join(choiceDescLines, "\n"))
		if len(res.Steps[choiceIdx].Options) == 0 {
			// A choice with zero options is discarded (spec §4.2).
			res.Steps = append(res.Steps[:choiceIdx], res.Steps[choiceIdx+1:]...)
		}
		inChoice = false
		choiceDescLines = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(reply))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		key, body, ok := parseMarker(line)
		if !ok {
			// Non-marker line.
			if inChoice {
				choiceDescLines = append(choiceDescLines, line)
				continue
			}
			inHint = false // any intervening non-CHANGE line ends hint absorption
			res.Steps = append(res.Steps, narrationOrDialogue(line))
			continue
		}

		switch key {
		case "MISSION":
			res.MissionFlag = strings.EqualFold(strings.TrimSpace(body), "true")
			inHint = false
		case "NARRATION":
			inHint = false
			res.Steps = append(res.Steps, Step{Kind: StepNarration, Text: unquote(body)})
		case "DIALOGUE":
			inHint = false
			charID, text := splitTwo(body)
			res.Steps = append(res.Steps, Step{Kind: StepDialogue, CharacterID: strings.TrimSpace(charID), Text: unquote(text)})
		case "HINT":
			res.Steps = append(res.Steps, Step{Kind: StepHint, Text: unquote(body)})
			hintIdx = len(res.Steps) - 1
			inHint = true
		case "CHANGE":
			if inHint {
				if c, ok := parseChange(body, res.Deltas); ok {
					res.Steps[hintIdx].Changes = append(res.Steps[hintIdx].Changes, c)
				}
			}
			// A CHANGE line outside an open hint block is dropped.
		case "CHOICE":
			closeChoice()
			inHint = false
			res.Steps = append(res.Steps, Step{Kind: StepChoice, ChoiceTitle: strings.TrimSpace(body)})
			choiceIdx = len(res.Steps) - 1
			inChoice = true
			choiceDescLines = nil
		case "OPTION":
			if inChoice {
				opt := strings.TrimSpace(body)
				res.Steps[choiceIdx].Options = append(res.Steps[choiceIdx].Options, opt)
				res.ChoiceOptions = append(res.ChoiceOptions, opt)
			}
		case "END_CHOICE":
			closeChoice()
			inHint = false
		default:
			inHint = false
			// Unknown marker: coerce the raw line to narration.
			res.Steps = append(res.Steps, Step{Kind: StepNarration, Text: line})
		}
	}
	closeChoice()

	return res
}

// parseMarker extracts KEY and body from a "[KEY: body]" line. The body is
// everything between the first ':' and the final ']' on the line.
func parseMarker(line string) (key, body string, ok bool) {
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return "", "", false
	}
	inner := line[1 : len(line)-1]
	colon := strings.Index(inner, ":")
	if colon < 0 {
		// markers with no body, e.g. [END_CHOICE]
		return strings.TrimSpace(inner), "", true
	}
	key = strings.TrimSpace(inner[:colon])
	body = strings.TrimSpace(inner[colon+1:])
	if key == "" {
		return "", "", false
	}
	return key, body, true
}

// splitTwo splits "a, b" into ("a", "b") on the first top-level comma.
func splitTwo(s string) (string, string) {
	idx := strings.Index(s, ",")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// narrationOrDialogue coerces an unmatched line to a dialogue step if it
// matches the `Name: "text"` heuristic, else to narration (spec §4.2).
func narrationOrDialogue(line string) Step {
	idx := strings.Index(line, dialogueHeuristicSplit)
	if idx > 0 {
		name := strings.TrimSpace(line[:idx])
		rest := strings.TrimSpace(line[idx+len(dialogueHeuristicSplit):])
		if len(rest) >= 2 && rest[0] == '"' && rest[len(rest)-1] == '"' && !strings.Contains(name, " ") {
			return Step{Kind: StepDialogue, CharacterID: name, Text: unquote(rest)}
		}
	}
	return Step{Kind: StepNarration, Text: line}
}

// parseChange parses one [CHANGE: ...] body into a Change, aggregating its
// effect into deltas. Returns ok=false for an unrecognized shape.
func parseChange(body string, deltas *Deltas) (Change, bool) {
	parts := splitArgs(body)
	if len(parts) != 3 {
		return Change{}, false
	}
	a0, a1, a2 := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])

	if strings.EqualFold(a0, "RELATIONSHIP") {
		delta, err := parseSignedInt(a2)
		if err != nil {
			return Change{}, false
		}
		deltas.Relationships[a1] += delta
		return Change{Kind: ChangeRelationship, NPCName: a1, Delta: delta}, true
	}

	if action, isItem := parseItemAction(a1); isItem {
		qty, err := strconv.Atoi(a2)
		if err != nil {
			return Change{}, false
		}
		deltas.Items = append(deltas.Items, ItemDelta{Name: a0, Action: action, Quantity: qty})
		return Change{Kind: ChangeItem, ItemName: a0, ItemAction: action, Quantity: qty}, true
	}

	// Attribute delta: actorName, attrName, ±N
	delta, err := parseSignedInt(a2)
	if err != nil {
		return Change{}, false
	}
	key := a0 + "." + a1
	deltas.Attributes[key] += delta
	return Change{Kind: ChangeAttribute, ActorName: a0, AttrName: a1, Delta: delta}, true
}

func parseItemAction(token string) (ItemAction, bool) {
	switch token {
	case "获得":
		return ItemAcquire, true
	case "丢失":
		return ItemLose, true
	}
	return "", false
}

func parseSignedInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	return strconv.Atoi(s)
}

// splitArgs splits a comma-separated CHANGE body into exactly its
// top-level args, tolerant of a quoted third/second field.
func splitArgs(s string) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ',' && !inQuote:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	parts = append(parts, cur.String())
	return parts
}
