package submission

import "sort"

// SortNewestFirst orders records by submission time, most recent first.
// Ties keep their store order.
func SortNewestFirst(rs []Record) []Record {
	out := append([]Record(nil), rs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}

// FilterByStudent keeps the records of one student.
func FilterByStudent(rs []Record, studentID string) []Record {
	out := []Record{}
	for _, r := range rs {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out
}

// GroupByStudent buckets records per student; each bucket is newest first.
func GroupByStudent(rs []Record) map[string][]Record {
	out := map[string][]Record{}
	for _, r := range SortNewestFirst(rs) {
		out[r.StudentID] = append(out[r.StudentID], r)
	}
	return out
}

// LatestPerStudent keeps the most recent record per (student, exercise) pair,
// newest first.
func LatestPerStudent(rs []Record) []Record {
	type key struct{ student, exercise string }
	seen := map[key]bool{}
	out := []Record{}
	for _, r := range SortNewestFirst(rs) {
		k := key{r.StudentID, r.ExerciseID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
