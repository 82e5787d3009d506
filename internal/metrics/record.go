package metrics

// Record is the metrics record of one analyzed file. Records are values:
// every field is fixed at Build time except BugLabel, which only Label sets.
type Record struct {
	File          string  `json:"file"`
	LOC           int     `json:"loc"`
	CommentLines  int     `json:"comment_lines"`
	BlankLines    int     `json:"blank_lines"`
	Functions     int     `json:"function_count"`
	Classes       int     `json:"class_count"`
	AvgParams     float64 `json:"avg_params_per_function"`
	AvgMethods    float64 `json:"avg_methods_per_class"`
	Raises        int     `json:"raise_count"`
	Excepts       int     `json:"except_count"`
	Complexity    int     `json:"cyclomatic_complexity"`
	MaxDepth      int     `json:"max_tree_depth"`
	InternalCalls int     `json:"internal_calls"`
	ExternalCalls int     `json:"external_calls"`
	BugLabel      bool    `json:"bug_label"`
}

// Build composes the partial results of one file into a Record with
// BugLabel false.
func Build(file string, lines LineStats, complexity, maxDepth int, s Structure) Record {
	return Record{
		File:          file,
		LOC:           lines.LOC,
		CommentLines:  lines.Comments,
		BlankLines:    lines.Blanks,
		Functions:     s.Functions,
		Classes:       s.Classes,
		AvgParams:     s.AvgParams,
		AvgMethods:    s.AvgMethods,
		Raises:        s.Raises,
		Excepts:       s.Excepts,
		Complexity:    complexity,
		MaxDepth:      maxDepth,
		InternalCalls: s.InternalCalls,
		ExternalCalls: s.ExternalCalls,
	}
}

// Label returns a copy of records where BugLabel is true exactly for the
// records whose File equals an entry of buggy. The input is not modified, so
// labeling twice with the same set gives the same result.
func Label(records []Record, buggy map[string]struct{}) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		_, r.BugLabel = buggy[r.File]
		out[i] = r
	}
	return out
}

// PathSet builds the set argument of Label from a list of paths.
func PathSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
