package generator

import (
	"fmt"
	"strings"

	"adventure-server/internal/domain"
)

const chapterSystemPrompt = `You are the narrator of an interactive educational adventure for young readers.
Write one chapter of vivid, age-appropriate prose in second person.
Weave in the sensory details and narrative elements you are given.
For STORY chapters, end with a block labeled exactly "CHOICES:" followed by three numbered choices.
For LESSON chapters, end the prose at a natural pause before the question is asked; do not write the question yourself.
For CONCLUSION chapters, resolve the story and reveal the plot twist; offer no choices.`

const summarySystemPrompt = `You summarize adventure chapters for a recap page.
Reply with exactly two labeled lines:
TITLE: <a short evocative chapter title>
SUMMARY: <two sentences covering what happened>`

const visualsSystemPrompt = `You extract character visual descriptions from story text.
Reply with a JSON object mapping each named character to a one-sentence physical description.
Only include characters that are actually described. Reply with {} if none are.`

// BuildChapterPrompt renders the system and user prompts for one chapter.
func BuildChapterPrompt(req ChapterRequest) (system, user string) {
	st := req.State
	var b strings.Builder

	fmt.Fprintf(&b, "Chapter %d of %d. Chapter type: %s. Narrative phase: %s.\n\n",
		req.ChapterNumber, st.StoryLength, req.ChapterType, req.Phase)
	fmt.Fprintf(&b, "Theme: %s\nMoral teaching: %s\n", st.SelectedTheme, st.SelectedMoralTeaching)
	fmt.Fprintf(&b, "Setting: %s\nKey characters: %s\nKey objects: %s\nKey events: %s\n",
		st.SelectedNarrativeElems.Setting, st.SelectedNarrativeElems.Characters,
		st.SelectedNarrativeElems.Objects, st.SelectedNarrativeElems.Events)
	fmt.Fprintf(&b, "Sensory anchors: sight %q, sound %q, smell %q, touch %q, taste %q\n",
		st.SelectedSensoryDetails.Visual, st.SelectedSensoryDetails.Sound,
		st.SelectedSensoryDetails.Smell, st.SelectedSensoryDetails.Touch,
		st.SelectedSensoryDetails.Taste)

	if st.Agency != nil {
		fmt.Fprintf(&b, "The hero's chosen %s is %q — reference it naturally.\n", st.Agency.Category, st.Agency.Name)
	}

	// The twist is only written out in the climax and ending; earlier
	// chapters get it as a foreshadowing target, never as text to reveal.
	if req.Phase == domain.PhaseClimax || req.Phase == domain.PhaseReturn {
		fmt.Fprintf(&b, "Plot twist to reveal: %s\n", st.SelectedPlotTwist)
	} else {
		fmt.Fprintf(&b, "Plot twist to foreshadow subtly, WITHOUT revealing: %s\n", st.SelectedPlotTwist)
	}

	if titles, summaries := st.SummariesSnapshot(); len(summaries) > 0 {
		b.WriteString("\nStory so far:\n")
		for i, summary := range summaries {
			title := ""
			if i < len(titles) {
				title = titles[i]
			}
			fmt.Fprintf(&b, "%d. %s — %s\n", i+1, title, summary)
		}
	}

	if prev := lastChoice(st); prev != "" {
		fmt.Fprintf(&b, "\nThe hero just chose: %q. Continue from that choice.\n", prev)
	}

	if req.ChapterType == domain.ChapterTypeLesson && req.Question != nil {
		fmt.Fprintf(&b, "\nThis chapter leads into a quiz question about %s: %q. Build the scene so the question arises naturally.\n",
			req.Question.Topic, req.Question.Question)
	}
	if len(req.PreviousLessons) > 0 {
		b.WriteString("\nEarlier lessons covered: ")
		for i, q := range req.PreviousLessons {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(q.Topic)
		}
		b.WriteString(". Do not repeat them.\n")
	}

	return chapterSystemPrompt, b.String()
}

// BuildSummaryPrompt renders the enrichment prompt for one chapter.
func BuildSummaryPrompt(ch domain.ChapterData) (system, user string) {
	return summarySystemPrompt, fmt.Sprintf("Chapter %d:\n\n%s", ch.ChapterNumber, ch.Content)
}

// BuildVisualsPrompt renders the character-visual extraction prompt.
// known lists characters that already have a stored description so the
// model does not repeat them.
func BuildVisualsPrompt(ch domain.ChapterData, known []string) (system, user string) {
	var b strings.Builder
	if len(known) > 0 {
		fmt.Fprintf(&b, "Already described (skip these): %s\n\n", strings.Join(known, ", "))
	}
	b.WriteString(ch.Content)
	return visualsSystemPrompt, b.String()
}

// BuildImagePrompt renders a scene-illustration prompt from the chapter
// and the accumulated character visuals.
func BuildImagePrompt(ch domain.ChapterData, visuals map[string]string) string {
	var b strings.Builder
	b.WriteString("Storybook illustration, soft colors. Scene: ")
	excerpt := ch.Content
	if len(excerpt) > 600 {
		excerpt = excerpt[:600]
	}
	b.WriteString(excerpt)
	for name, desc := range visuals {
		fmt.Fprintf(&b, " %s looks like: %s.", name, desc)
	}
	return b.String()
}

func lastChoice(st *domain.AdventureState) string {
	for i := len(st.Chapters) - 1; i >= 0; i-- {
		resp := st.Chapters[i].Response
		if resp != nil && resp.Story != nil {
			return resp.Story.ChoiceText
		}
	}
	return ""
}
