package model

// RunValidators invokes every validator on the instance's ancestor
// chain, root first, and concatenates the results. Base-class errors
// therefore surface before derived-class errors. An empty result means
// the instance is valid.
func RunValidators(inst *Instance) []string {
	chain := inst.class.chain
	var msgs []string
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Validator == nil {
			continue
		}
		msgs = append(msgs, chain[i].Validator(inst)...)
	}
	return msgs
}

// WithValidationSuspended runs a multi-step mutation with validator
// invocation suspended, then restores the flag and runs the full chain
// once. Intermediate states may violate the validators; the final state
// may not. The flag is restored even when fn fails, so a temporarily
// invalid instance never escapes the scope with validation still off.
func WithValidationSuspended(inst *Instance, fn func(inst *Instance) error) error {
	prev := inst.ValidationSuspended
	inst.ValidationSuspended = true
	defer func() {
		inst.ValidationSuspended = prev
	}()

	if err := fn(inst); err != nil {
		return err
	}

	if msgs := RunValidators(inst); len(msgs) > 0 {
		return &ValidationError{ClassName: inst.class.Name, Messages: msgs}
	}
	return nil
}

// MutateUnchecked runs a mutation with validation suspended and skips
// the trailing validator run entirely.
//
// Unsafe: the caller takes on the obligation that no invariant is
// broken when fn returns. Intended for performance-critical call sites
// proven invalid-state-free; prefer WithValidationSuspended everywhere
// else.
func MutateUnchecked(inst *Instance, fn func(inst *Instance) error) error {
	prev := inst.ValidationSuspended
	inst.ValidationSuspended = true
	defer func() {
		inst.ValidationSuspended = prev
	}()
	return fn(inst)
}
