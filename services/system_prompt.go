package services

import (
	"fmt"
	"strings"

	"github.com/dyk-im/Break-Bias/models"
)

const detailedAnalysisPrompt = `You are an expert at analysing public opinion expressed in online comments and documents.
Using only the evidence below, analyse and summarise the opinion relevant to the user's question.

Consider:
1. The overall sentiment (positive, negative, neutral)
2. The main points and opinions raised
3. The reasons given for and against
4. What the authors care about most
5. The general direction of opinion

Answer in this format:
### 📊 Opinion summary
[overall trend and key points]

### 💭 Main opinions
[Positive]
- opinion
[Negative]
- opinion
[Neutral / other]
- opinion

### 🎯 Conclusion
[overall assessment]

Relevant evidence:
%s

Sentiment statistics:
%s`

const summaryPrompt = `Using the evidence below, give a short answer to the user's question in 3-5 sentences covering only the essentials.

Evidence:
%s

Sentiment statistics:
%s`

const directChatPrompt = `You are a helpful assistant for an opinion analysis service.
Have a natural conversation with the user, taking the previous messages into account.`

// defaultVideoQuestion is asked when a video link comes without a question.
const defaultVideoQuestion = "What is the overall opinion about this video?"

// videoAnalysisResponse wraps a video analysis with its collection counts.
func videoAnalysisResponse(url string, result *models.IngestResult, analysis string) string {
	return fmt.Sprintf(`🎥 **YouTube video analysis**

📊 **Collection**
- Comments collected: %d
- Chunks indexed: %d

%s

🔗 **Analysed video**: %s`, result.CollectedCount, result.ChunkCount, analysis, url)
}

func apologyResponse(err error) string {
	return fmt.Sprintf("Sorry, something went wrong while generating a response: %v", err)
}

// noDataResponse is returned when retrieval found no evidence.
func noDataResponse(query string) string {
	return fmt.Sprintf(`### ⚠️ Not enough data
No comments or documents related to '%s' were found.

Please check that:
1. The query is spelled correctly
2. Comments for this topic have been collected
3. A more general keyword gives results

Collect comments for the topic first, then ask again.`, query)
}

// synthesisFailedResponse is returned with the aggregate when generation fails.
func synthesisFailedResponse(agg models.SentimentAggregate) string {
	return fmt.Sprintf("The opinion summary could not be generated right now. Sentiment of the evidence found:\n%s", formatSentimentStats(agg))
}

// retrievalUnavailableResponse is returned when the index cannot be queried.
func retrievalUnavailableResponse(query string) string {
	return fmt.Sprintf("Retrieval is currently unavailable, so no evidence could be gathered for '%s'. Please try again later.", query)
}

func formatSentimentStats(agg models.SentimentAggregate) string {
	return fmt.Sprintf("Positive: %.1f%%\nNegative: %.1f%%\nNeutral: %.1f%%\nTotal items: %d\nDominant sentiment: %s",
		agg.Positive*100, agg.Negative*100, agg.Neutral*100, agg.TotalItems, agg.Dominant)
}

// formatEvidence renders up to maxItems results as "[Comment i] author (👍likes): text",
// each text cut to maxChars runes.
func formatEvidence(evidence []models.RetrievalResult, maxItems, maxChars int) string {
	if len(evidence) > maxItems {
		evidence = evidence[:maxItems]
	}
	lines := make([]string, 0, len(evidence))
	for i, r := range evidence {
		text := truncateRunes(r.Item.Content, maxChars)
		switch r.Item.Origin {
		case models.OriginDocument:
			name := r.Item.Metadata[models.MetaFilename]
			if name == "" {
				name = r.Item.SourceID
			}
			lines = append(lines, fmt.Sprintf("[Document %d] %s: %s", i+1, name, text))
		default:
			author := r.Item.Metadata[models.MetaAuthor]
			if author == "" {
				author = "anonymous"
			}
			likes := r.Item.Metadata[models.MetaLikeCount]
			if likes == "" {
				likes = "0"
			}
			lines = append(lines, fmt.Sprintf("[Comment %d] %s (👍%s): %s", i+1, author, likes, text))
		}
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
