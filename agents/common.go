package agents

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/CAICAIIs/Auto-Scholar/session"
)

// CopyState returns the starting point for a node's delta: Replace-policy
// fields carry the current value forward, Append-policy fields (Logs,
// Messages, AgentHandoffs) start empty so the node appends only its own new
// entries — see session.Base and session.Merge's copy-forward convention.
func CopyState(s session.State) session.State {
	return session.Base(s)
}

// appendLog returns a one-entry Logs delta for nodeID; callers assign it
// directly since Logs is Append-policy (new items only, never full history).
func appendLog(_ []string, nodeID, msg string) []string {
	return []string{fmt.Sprintf("[%s] %s", nodeID, msg)}
}

// appendHandoff returns a one-entry AgentHandoffs delta recording the hop
// into nodeID from whichever node last ran.
func appendHandoff(s session.State, nodeID string) []string {
	from := "start"
	if len(s.AgentHandoffs) > 0 {
		last := s.AgentHandoffs[len(s.AgentHandoffs)-1]
		if idx := strings.LastIndex(last, "→"); idx >= 0 {
			from = strings.TrimSpace(last[idx+len("→"):])
		}
	}
	return []string{fmt.Sprintf("%s→%s", from, nodeID)}
}

var citeMarkerRe = regexp.MustCompile(`\{cite:(\d+)\}`)

// NormalizeCitations rewrites every {cite:N} marker in content to the
// human-facing [N] form and returns the distinct, in-order paper IDs the
// markers reference (indices 1-based into papers).
func NormalizeCitations(content string, papers []session.PaperMetadata) (string, []string) {
	var citedIDs []string
	seen := map[string]bool{}
	out := citeMarkerRe.ReplaceAllStringFunc(content, func(m string) string {
		groups := citeMarkerRe.FindStringSubmatch(m)
		n, err := strconv.Atoi(groups[1])
		if err != nil || n < 1 || n > len(papers) {
			return m
		}
		paperID := papers[n-1].PaperID
		if !seen[paperID] {
			seen[paperID] = true
			citedIDs = append(citedIDs, paperID)
		}
		return fmt.Sprintf("[%d]", n)
	})
	return out, citedIDs
}

// citationIndicesOutOfBounds reports every {cite:N} index in content that falls
// outside [1, len(papers)] — the citation_out_of_bounds QA error.
func citationIndicesOutOfBounds(content string, papers []session.PaperMetadata) []int {
	var bad []int
	for _, m := range citeMarkerRe.FindAllStringSubmatch(content, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n < 1 || n > len(papers) {
			bad = append(bad, n)
		}
	}
	return bad
}

// PrioritizeBySubQuestions reorders papers so that, for each sub-question in
// priority order, the single best-matching unreserved paper is pulled to
// the front; any papers left unreserved once every sub-question has claimed
// one follow in their original arrival order. With no plan (or an empty
// sub-question list), papers are returned unchanged.
//
// Keyword matching rule (spec §4.5.3): a paper's score against a
// sub-question is the count of distinct (lowercased) keywords occurring in
// its lowercased title; the highest-scoring unreserved paper wins, ties
// broken by input order, and a sub-question with no keyword match at all
// falls back to the first still-unreserved paper.
func PrioritizeBySubQuestions(papers []session.PaperMetadata, plan *session.ResearchPlan) []session.PaperMetadata {
	if plan == nil || len(plan.SubQuestions) == 0 || len(papers) == 0 {
		return papers
	}

	sorted := append([]session.SubQuestion{}, plan.SubQuestions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	reserved := make([]bool, len(papers))
	ordered := make([]session.PaperMetadata, 0, len(papers))

	for _, sq := range sorted {
		best := -1
		bestScore := -1
		for i, p := range papers {
			if reserved[i] {
				continue
			}
			score := keywordScore(p.Title, sq.Keywords)
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best == -1 {
			continue // every paper already reserved
		}
		reserved[best] = true
		ordered = append(ordered, papers[best])
	}

	for i, p := range papers {
		if !reserved[i] {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// keywordScore counts the distinct lowercased keywords occurring in title
// (also lowercased). A sub-question with zero keywords or no match at all
// scores zero, which PrioritizeBySubQuestions treats as "first unreserved
// paper wins" since every unreserved candidate ties at zero and the loop
// picks the first one it sees.
func keywordScore(title string, keywords []string) int {
	lowerTitle := strings.ToLower(title)
	seen := map[string]bool{}
	score := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		if strings.Contains(lowerTitle, kw) {
			score++
		}
	}
	return score
}
