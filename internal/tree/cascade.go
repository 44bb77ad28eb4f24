package tree

import "github.com/starford/lattice/internal/models"

// CascadeResult is the outcome of removing a folder and everything under it.
type CascadeResult struct {
	Folders        []models.Folder
	Items          []models.Item
	RemovedFolders []string
	RemovedItems   []string
	// Fallback is the former parent of the removed folder, empty for roots.
	Fallback string
	Found    bool
}

// Cascade removes targetID and every folder of the same kind nested under
// it, plus the items of that kind that live in any removed folder. Items and
// folders of other kinds are never touched.
func Cascade(folders []models.Folder, items []models.Item, targetID string, kind models.Kind) CascadeResult {
	var target *models.Folder
	for i := range folders {
		if folders[i].ID == targetID && folders[i].Kind == kind {
			target = &folders[i]
			break
		}
	}
	if target == nil {
		return CascadeResult{Folders: folders, Items: items}
	}

	removed := map[string]bool{targetID: true}
	frontier := map[string]bool{targetID: true}
	for len(frontier) > 0 {
		next := make(map[string]bool)
		for _, f := range folders {
			if f.Kind != kind || removed[f.ID] || !frontier[f.ParentID] {
				continue
			}
			removed[f.ID] = true
			next[f.ID] = true
		}
		frontier = next
	}

	res := CascadeResult{Fallback: target.ParentID, Found: true}
	for _, f := range folders {
		if removed[f.ID] && f.Kind == kind {
			res.RemovedFolders = append(res.RemovedFolders, f.ID)
			continue
		}
		res.Folders = append(res.Folders, f)
	}
	for _, it := range items {
		if it.Kind == kind && removed[it.ParentID] {
			res.RemovedItems = append(res.RemovedItems, it.ID)
			continue
		}
		res.Items = append(res.Items, it)
	}
	return res
}
