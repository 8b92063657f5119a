package research

import (
	"fmt"
	"strings"
)

// Prompt builders for the research model calls. Summary and critique
// prompts keep the bilingual 回答/总结 protocol the parsers expect.

const queryGenSystem = `You are a research planner. Produce focused web-search
queries as a JSON array of strings, nothing else. Queries should be diverse:
cover recency, official sources, hard evidence, risks, and practical usage.`

func queryGenPrompt(topic string, n, epoch int, historical, missingTopics []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research topic: %s\n\nGenerate up to %d new search queries.\n", topic, n)
	if epoch == 0 {
		sb.WriteString("This is the first round; include the topic itself as one query.\n")
	}
	if len(historical) > 0 {
		fmt.Fprintf(&sb, "\nAlready searched (do not repeat):\n- %s\n", strings.Join(historical, "\n- "))
	}
	if len(missingTopics) > 0 {
		fmt.Fprintf(&sb, "\nKnowledge gaps to target:\n- %s\n", strings.Join(missingTopics, "\n- "))
	}
	return sb.String()
}

const selectURLSystem = `You select the single most informative source from a
numbered result list. Reply with just the number.`

func selectURLPrompt(topic, query, formattedResults string) string {
	return fmt.Sprintf(
		"Topic: %s\nQuery: %s\n\nResults:\n%s\nWhich result best advances the research? Reply with its number only.",
		topic, query, formattedResults)
}

const summarizeSystem = `You are a research critic. Given the topic, the
accumulated notes, and newly collected material, respond in two parts:

回答: yes or no  (yes means the accumulated knowledge now answers the topic)
总结: a concise summary of what the new material adds`

func summarizePrompt(topic string, notes []string, material string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\n", topic)
	if len(notes) > 0 {
		fmt.Fprintf(&sb, "Accumulated notes:\n%s\n\n", trimTo(strings.Join(notes, "\n"), 3000))
	}
	fmt.Fprintf(&sb, "New material:\n%s\n", trimTo(material, 6000))
	return sb.String()
}

const reportSystem = `You are a research writer. Produce a well-structured
report in the language of the topic, with citations to the collected sources
where they support a claim.`

func reportPrompt(topic string, notes []string, sources string) string {
	return fmt.Sprintf(
		"Topic: %s\n\nResearch notes:\n%s\n\nSources:\n%s\n\nWrite the final report.",
		topic, trimTo(strings.Join(notes, "\n\n"), 8000), trimTo(sources, 3000))
}

const decomposeSystem = `You are a research planner. Break a topic into
subtopics. Respond with a JSON array of objects:
[{"topic": "...", "relevance": 0.0-1.0}]`

func decomposePrompt(topic string, maxBranches int, parentContext string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\nPropose up to %d subtopics worth researching separately.\n",
		topic, maxBranches)
	if parentContext != "" {
		fmt.Fprintf(&sb, "\nWhat is already known:\n%s\n", trimTo(parentContext, 2000))
	}
	return sb.String()
}

const branchSummarySystem = `You are a researcher. Summarize what the collected
material establishes about the subtopic, in a few sentences.`

func branchSummaryPrompt(topic, material string) string {
	return fmt.Sprintf("Subtopic: %s\n\nMaterial:\n%s", topic, trimTo(material, 6000))
}

const mergeSystem = `You are a research writer. Integrate the branch summaries
into one coherent report on the root topic, preserving attributions.`

// mergePrompt bounds the integrated input to roughly a thousand words.
func mergePrompt(topic, mergedSummaries string) string {
	return fmt.Sprintf("Root topic: %s\n\nBranch findings:\n%s\n\nWrite the integrated report.",
		topic, trimToWords(mergedSummaries, 1000))
}

func trimToWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return s
	}
	return strings.Join(fields[:n], " ") + "…"
}
