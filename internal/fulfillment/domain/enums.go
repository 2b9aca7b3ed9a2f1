package domain

// Stage is the partner's coarse lifecycle phase for an order. Values match
// the partner wire format after lower-casing.
type Stage string

const (
	StageInProgress Stage = "inprogress"
	StageComplete   Stage = "complete"
	StageCancelled  Stage = "cancelled"
)

// Terminal reports whether no further polling can change the stage.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageCancelled
}

// DetailStatus is one of the five fine-grained sub-phases tracked
// independently within a stage.
type DetailStatus string

const (
	DetailNotStarted DetailStatus = "notstarted"
	DetailInProgress DetailStatus = "inprogress"
	DetailComplete   DetailStatus = "complete"
	DetailError      DetailStatus = "error"
)

// CreateOutcome is the partner's response outcome for order creation.
type CreateOutcome string

const (
	OutcomeCreated           CreateOutcome = "created"
	OutcomeCreatedWithIssues CreateOutcome = "createdwithissues"
	OutcomeAlreadyExists     CreateOutcome = "alreadyexists"
)

// ShippingMethod selects the partner's delivery speed tier.
type ShippingMethod string

const (
	ShippingBudget    ShippingMethod = "budget"
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

// Sizing controls how an asset is fitted to the print area.
type Sizing string

const (
	SizingFillPrintArea Sizing = "fillprintarea"
	SizingFitPrintArea  Sizing = "fitprintarea"
	SizingStretch       Sizing = "stretchtoprintarea"
)
