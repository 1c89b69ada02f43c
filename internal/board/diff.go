package board

// MutationRecord lists the nodes inserted into one container.
type MutationRecord struct {
	Target Handle

	// Column is the name of the column the container belongs to at the time
	// of the mutation.
	Column string

	Added []Node
}

// MutationBatch is a set of insertions delivered together.
type MutationBatch struct {
	Records []MutationRecord
}

// Empty reports whether the batch carries no insertions.
func (b MutationBatch) Empty() bool {
	for _, r := range b.Records {
		if len(r.Added) > 0 {
			return false
		}
	}
	return true
}

// Diff reports the nodes present in next but not in prev, per container.
//
// Only containers rendered in both documents are compared; a container that
// appears for the first time has no earlier state to diff against. Node keys
// are compared as multisets so that two identical placeholders count twice.
// A nil prev yields an empty batch: the first rendering is a baseline, not a
// stream of insertions.
func Diff(prev, next *Document) MutationBatch {
	var batch MutationBatch
	if prev == nil || next == nil {
		return batch
	}

	for _, nc := range next.Containers {
		pc, ok := prev.Container(nc.Handle)
		if !ok {
			continue
		}

		seen := make(map[string]int, len(pc.Nodes))
		for _, n := range pc.Nodes {
			seen[n.Key]++
		}

		var added []Node
		for _, n := range nc.Nodes {
			if seen[n.Key] > 0 {
				seen[n.Key]--
				continue
			}
			added = append(added, n)
		}

		if len(added) > 0 {
			batch.Records = append(batch.Records, MutationRecord{
				Target: nc.Handle,
				Column: nc.Name,
				Added:  added,
			})
		}
	}

	return batch
}
