// Diversity-aware selection (spec.md §4.7.6), active only in summary mode.
package hybrid

// selectTopK implements spec.md §4.7.6: in summary mode, bucket candidates
// by file_id, take the top-scoring chunk from each of the highest-scoring
// files until min(len(files), summary_min_files, top_k) files are
// represented, then round-robin additional chunks per file up to
// summary_per_file_cap, then fill remaining slots greedily by score.
// Outside summary mode, returns the first top_k of the already-sorted list.
func selectTopK(hits []Hit, topK int, summaryMode bool, summaryMinFiles, perFileCap int) []Hit {
	if !summaryMode {
		if topK > len(hits) {
			topK = len(hits)
		}
		return append([]Hit{}, hits[:topK]...)
	}

	byFile := make(map[string][]Hit)
	var fileOrder []string
	for _, h := range hits {
		if _, ok := byFile[h.FileID]; !ok {
			fileOrder = append(fileOrder, h.FileID)
		}
		byFile[h.FileID] = append(byFile[h.FileID], h)
	}

	minFiles := summaryMinFiles
	if minFiles > len(fileOrder) {
		minFiles = len(fileOrder)
	}
	if minFiles > topK {
		minFiles = topK
	}

	selected := make([]Hit, 0, topK)
	selectedIDs := make(map[string]struct{})
	takenPerFile := make(map[string]int)

	addHit := func(h Hit) {
		selected = append(selected, h)
		selectedIDs[h.ChunkID] = struct{}{}
		takenPerFile[h.FileID]++
	}

	for i := 0; i < minFiles && len(selected) < topK; i++ {
		fileID := fileOrder[i]
		if bucket := byFile[fileID]; len(bucket) > 0 {
			addHit(bucket[0])
		}
	}

	for round := 1; round < perFileCap && len(selected) < topK; round++ {
		progressed := false
		for _, fileID := range fileOrder {
			if len(selected) >= topK {
				break
			}
			bucket := byFile[fileID]
			if round >= len(bucket) {
				continue
			}
			if takenPerFile[fileID] > round {
				continue
			}
			addHit(bucket[round])
			progressed = true
		}
		if !progressed {
			break
		}
	}

	if len(selected) < topK {
		for _, h := range hits {
			if len(selected) >= topK {
				break
			}
			if _, ok := selectedIDs[h.ChunkID]; ok {
				continue
			}
			addHit(h)
		}
	}

	return selected
}
