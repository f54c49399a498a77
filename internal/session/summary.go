package session

import (
	"fmt"
	"strings"

	"adventure-server/internal/domain"
)

// BuildSummaryChapter aggregates chapter titles, summaries and quiz
// results into the terminal SUMMARY chapter. Every chapter gets an entry;
// gaps were filled with placeholders before this runs.
func BuildSummaryChapter(state *domain.AdventureState) domain.ChapterData {
	titles, summaries := state.SummariesSnapshot()
	stats := state.Stats()

	var b strings.Builder
	b.WriteString("# The Story of Your Adventure\n\n")
	for i := range state.Chapters {
		title := domain.PlaceholderTitle + " " + fmt.Sprint(i+1)
		if i < len(titles) && titles[i] != "" {
			title = titles[i]
		}
		summary := domain.PlaceholderSummary
		if i < len(summaries) && summaries[i] != "" {
			summary = summaries[i]
		}
		fmt.Fprintf(&b, "## %d. %s\n%s\n\n", i+1, title, summary)
	}

	b.WriteString("# Quiz Results\n\n")
	if stats.QuestionsAnswered == 0 {
		b.WriteString("No questions were asked on this adventure.\n")
	} else {
		fmt.Fprintf(&b, "You answered %d of %d questions correctly.\n\n", stats.CorrectAnswers, stats.QuestionsAnswered)
		for _, q := range state.LessonQuestions {
			mark := "✗"
			if q.IsCorrect != nil && *q.IsCorrect {
				mark = "✓"
			}
			fmt.Fprintf(&b, "- %s %s\n", mark, q.Question)
			if q.IsCorrect != nil && !*q.IsCorrect && q.Explanation != "" {
				fmt.Fprintf(&b, "  %s\n", q.Explanation)
			}
		}
	}

	if state.SelectedMoralTeaching != "" {
		fmt.Fprintf(&b, "\n*%s*\n", state.SelectedMoralTeaching)
	}

	return domain.ChapterData{
		ChapterNumber: len(state.Chapters) + 1,
		ChapterType:   domain.ChapterTypeSummary,
		Content:       b.String(),
	}
}
