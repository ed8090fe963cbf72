package cloudsync

import (
	"sort"

	"github.com/maruel/pinn/internal/models"
)

// MergeNotes unions local and remote by id. On an id collision the local
// version wins. Local ordering is preserved; remote-only items are appended
// in their remote order.
func MergeNotes(local, remote []models.Note) []models.Note {
	out := make([]models.Note, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local))
	for _, n := range local {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	for _, n := range remote {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

// MergeFlows unions local and remote flows by id, local wins.
func MergeFlows(local, remote []models.Flow) []models.Flow {
	out := make([]models.Flow, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local))
	for _, f := range local {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	for _, f := range remote {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out
}

// MergeStrings unions two name sets. There is no conflict concept for plain
// names; the result is sorted for stable output.
func MergeStrings(local, remote []string) []string {
	seen := make(map[string]struct{}, len(local)+len(remote))
	out := make([]string, 0, len(local)+len(remote))
	for _, lst := range [][]string{local, remote} {
		for _, s := range lst {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// filterNotes keeps only the notes whose id is in ids. A nil filter keeps
// everything.
func filterNotes(notes []models.Note, ids []string) []models.Note {
	if ids == nil {
		return notes
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if _, ok := want[n.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}

func filterFlows(flows []models.Flow, ids []string) []models.Flow {
	if ids == nil {
		return flows
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]models.Flow, 0, len(flows))
	for _, f := range flows {
		if _, ok := want[f.ID]; ok {
			out = append(out, f)
		}
	}
	return out
}
