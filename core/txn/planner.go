package txn

// planCompensation derives the inverse of a successfully executed
// mutating record. It is a pure function of the record, its captured
// before-image and its execution result; it is called immediately after
// each successful mutation, never in advance, because the inverse can
// depend on what execution assigned (e.g. the new CAS).
//
// For replace and remove, a missing before-image (capture read failed)
// degrades to the caller-recorded value and CAS; that fallback cannot
// distinguish the caller's belief from the document's actual prior state.
func planCompensation(rec *OperationRecord) *OperationRecord {
	switch rec.Kind {
	case OpInsert:
		// The document did not exist before; undo by removing it.
		return &OperationRecord{Kind: OpRemove, Key: rec.Key}

	case OpUpsert:
		if rec.captured && rec.wasCreated {
			return &OperationRecord{Kind: OpRemove, Key: rec.Key}
		}
		return &OperationRecord{
			Kind:  OpReplace,
			Key:   rec.Key,
			Value: cloneBytes(rec.originalValue),
			Cas:   rec.originalCas,
		}

	case OpReplace:
		if rec.captured && !rec.wasCreated {
			return &OperationRecord{
				Kind:  OpReplace,
				Key:   rec.Key,
				Value: cloneBytes(rec.originalValue),
				Cas:   rec.originalCas,
			}
		}
		return &OperationRecord{
			Kind:  OpReplace,
			Key:   rec.Key,
			Value: cloneBytes(rec.Value),
			Cas:   rec.Cas,
		}

	case OpRemove:
		if rec.captured && !rec.wasCreated {
			return &OperationRecord{
				Kind:  OpInsert,
				Key:   rec.Key,
				Value: cloneBytes(rec.originalValue),
			}
		}
		return &OperationRecord{
			Kind:  OpInsert,
			Key:   rec.Key,
			Value: cloneBytes(rec.Value),
		}

	case OpIncrement:
		return &OperationRecord{Kind: OpDecrement, Key: rec.Key, Delta: rec.Delta}

	case OpDecrement:
		return &OperationRecord{Kind: OpIncrement, Key: rec.Key, Delta: rec.Delta}

	case OpTouch:
		return &OperationRecord{Kind: OpTouch, Key: rec.Key, Expiry: rec.Expiry}

	case OpUnlock:
		// Re-acquiring a lock is out of scope; a plain read stands in as
		// the placeholder inverse.
		return &OperationRecord{Kind: OpGet, Key: rec.Key}

	default:
		// Read-only kinds never reach the planner.
		return nil
	}
}
