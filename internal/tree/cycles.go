package tree

import "github.com/starford/lattice/internal/models"

// BreakCycles returns folders with the parent cleared on every folder that
// lies on a parent cycle, so each of them becomes a root. The input is not
// modified; when there is no cycle it is returned as is.
func BreakCycles(folders []models.Folder) []models.Folder {
	parent := make(map[string]string, len(folders))
	for _, f := range folders {
		parent[f.ID] = f.ParentID
	}

	const (
		unvisited = iota
		onPath
		done
	)
	mark := make(map[string]int, len(folders))
	onCycle := map[string]bool{}
	for _, f := range folders {
		var path []string
		cur := f.ID
		for cur != "" && mark[cur] == unvisited {
			if _, ok := parent[cur]; !ok {
				break
			}
			mark[cur] = onPath
			path = append(path, cur)
			cur = parent[cur]
		}
		if cur != "" && mark[cur] == onPath {
			for i := len(path) - 1; i >= 0; i-- {
				onCycle[path[i]] = true
				if path[i] == cur {
					break
				}
			}
		}
		for _, id := range path {
			mark[id] = done
		}
	}
	if len(onCycle) == 0 {
		return folders
	}

	out := make([]models.Folder, len(folders))
	copy(out, folders)
	for i := range out {
		if onCycle[out[i].ID] {
			out[i].ParentID = ""
		}
	}
	return out
}
