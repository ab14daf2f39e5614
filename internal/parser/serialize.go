package parser

import (
	"fmt"
	"strings"
)

// Serialize re-emits steps using the marker grammar (spec §4.2), the
// inverse of ParseReply, used to exercise the round-trip law in spec §8.
func Serialize(steps []Step, missionFlag bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[MISSION: %t]\n", missionFlag)
	for _, st := range steps {
		switch st.Kind {
		case StepNarration:
			fmt.Fprintf(&b, "[NARRATION: %s]\n", st.Text)
		case StepDialogue:
			fmt.Fprintf(&b, "[DIALOGUE: %s, %q]\n", st.CharacterID, st.Text)
		case StepHint:
			fmt.Fprintf(&b, "[HINT: %s]\n", st.Text)
			for _, c := range st.Changes {
				switch c.Kind {
				case ChangeAttribute:
					fmt.Fprintf(&b, "[CHANGE: %s, %s, %+d]\n", c.ActorName, c.AttrName, c.Delta)
				case ChangeRelationship:
					fmt.Fprintf(&b, "[CHANGE: RELATIONSHIP, %s, %+d]\n", c.NPCName, c.Delta)
				case ChangeItem:
					verb := "获得"
					if c.ItemAction == ItemLose {
						verb = "丢失"
					}
					fmt.Fprintf(&b, "[CHANGE: %s, %s, %d]\n", c.ItemName, verb, c.Quantity)
				}
			}
		case StepChoice:
			fmt.Fprintf(&b, "[CHOICE: %s]\n", st.ChoiceTitle)
			if st.ChoiceDescription != "" {
				b.WriteString(st.ChoiceDescription)
				b.WriteString("\n")
			}
			for _, opt := range st.Options {
				fmt.Fprintf(&b, "[OPTION: %s]\n", opt)
			}
			b.WriteString("[END_CHOICE]\n")
		}
	}
	return b.String()
}
