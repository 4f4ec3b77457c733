package tx

// ZIP-317 conventional fee parameters.
const (
	MarginalFee  uint64 = 5000
	GraceActions        = 2

	// DefaultTransparentOutputs is the output count assumed when pricing a
	// transparent spend: one payment and one change output.
	DefaultTransparentOutputs = 2

	// MinOrchardActions is the padded action count of a non-empty Orchard bundle.
	MinOrchardActions = 2
)

// OrchardActions returns the number of actions an Orchard bundle with the
// given spends and outputs occupies. Non-empty bundles are padded to
// MinOrchardActions.
func OrchardActions(spends, outputs int) int {
	n := max(spends, outputs)
	if n == 0 {
		return 0
	}
	return max(n, MinOrchardActions)
}

// LogicalActions returns the ZIP-317 logical action count. Transparent inputs
// and outputs are assumed to be standard P2PKH sized.
func LogicalActions(transparentIn, transparentOut, orchardActions int) int {
	return max(transparentIn, transparentOut) + orchardActions
}

// ConventionalFee returns the ZIP-317 fee:
//
//	MarginalFee * max(GraceActions, logical_actions)
func ConventionalFee(transparentIn, transparentOut, orchardActions int) uint64 {
	actions := max(GraceActions, LogicalActions(transparentIn, transparentOut, orchardActions))
	return MarginalFee * uint64(actions)
}

// TransparentFee returns the fee for spending numInputs transparent UTXOs
// into DefaultTransparentOutputs transparent outputs.
func TransparentFee(numInputs int) uint64 {
	return ConventionalFee(numInputs, DefaultTransparentOutputs, 0)
}

// OrchardFee returns the fee for spending numSpends notes into a payment and
// a change output.
func OrchardFee(numSpends int) uint64 {
	return ConventionalFee(0, 0, OrchardActions(numSpends, 2))
}

// ShieldingFee returns the fee for moving numInputs transparent UTXOs into a
// single Orchard output.
func ShieldingFee(numInputs int) uint64 {
	return ConventionalFee(numInputs, 0, OrchardActions(0, 1))
}

// TransparentToOrchardFee returns the fee for spending numInputs transparent
// UTXOs into one Orchard payment and a transparent change output.
func TransparentToOrchardFee(numInputs int) uint64 {
	return ConventionalFee(numInputs, 1, OrchardActions(0, 1))
}

// OrchardToTransparentFee returns the fee for spending numSpends notes into
// one transparent payment and an Orchard change output.
func OrchardToTransparentFee(numSpends int) uint64 {
	return ConventionalFee(0, 1, OrchardActions(numSpends, 1))
}
