package domain

// Status is the QA workflow state of a listing.
type Status string

const (
	StatusPendingDigitalReview Status = "PENDING_DIGITAL_REVIEW"
	StatusWaitingForSample     Status = "WAITING_FOR_SAMPLE"
	StatusInQualityReview      Status = "IN_QUALITY_REVIEW"
	StatusActiveVerified       Status = "ACTIVE_VERIFIED"
	StatusRejected             Status = "REJECTED"
	StatusForRevision          Status = "FOR_REVISION"
)

// Logistics methods a seller may pick when shipping a physical sample.
const (
	LogisticsDropOffCourier = "drop_off_courier"
	LogisticsCompanyPickup  = "company_pickup"
	LogisticsMeetup         = "meetup"
)

// Rejection stages.
const (
	StageDigital  = "digital"
	StagePhysical = "physical"
)

// QARecord is the workflow envelope around exactly one Listing (same id).
type QARecord struct {
	ID       string `db:"id" json:"id"`
	SellerID string `db:"seller_id" json:"sellerId"`
	Status   Status `db:"status" json:"status"`

	LogisticsMethod  string `db:"logistics_method" json:"logisticsMethod,omitempty"`
	LogisticsAddress string `db:"logistics_address" json:"logisticsAddress,omitempty"`
	LogisticsNotes   string `db:"logistics_notes" json:"logisticsNotes,omitempty"`

	RejectionReason string `db:"rejection_reason" json:"rejectionReason,omitempty"`
	RejectionStage  string `db:"rejection_stage" json:"rejectionStage,omitempty"` // digital | physical
	RevisionReason  string `db:"revision_reason" json:"revisionReason,omitempty"`

	SubmittedAt         string `db:"submitted_at" json:"submittedAt,omitempty"`
	DigitalReviewedAt   string `db:"digital_reviewed_at" json:"digitalReviewedAt,omitempty"`
	SampleSubmittedAt   string `db:"sample_submitted_at" json:"sampleSubmittedAt,omitempty"`
	QualityReviewedAt   string `db:"quality_reviewed_at" json:"qualityReviewedAt,omitempty"`
	RejectedAt          string `db:"rejected_at" json:"rejectedAt,omitempty"`
	RevisionRequestedAt string `db:"revision_requested_at" json:"revisionRequestedAt,omitempty"`

	DigitalReviewerID string `db:"digital_reviewer_id" json:"digitalReviewerId,omitempty"`
	QualityReviewerID string `db:"quality_reviewer_id" json:"qualityReviewerId,omitempty"`
}

// IsTerminal reports whether no further transition is defined from s.
// FOR_REVISION is terminal-pending-reopen: the workflow defines no path
// back into review, so the engine treats it as terminal.
func (s Status) IsTerminal() bool {
	return s == StatusActiveVerified || s == StatusRejected || s == StatusForRevision
}

// ApprovalFor maps a QA status to the buyer-facing approval flag.
func ApprovalFor(s Status) string {
	switch s {
	case StatusActiveVerified:
		return ApprovalApproved
	case StatusRejected:
		return ApprovalRejected
	default:
		return ApprovalPending
	}
}

// ValidTransition reports whether from → to is a legal state change.
// Production code drives transitions through the engine operations, which
// already enforce source states; this is the single table both lean on.
func ValidTransition(from, to Status) bool {
	if !from.IsTerminal() && to == StatusForRevision {
		return true
	}
	switch from {
	case StatusPendingDigitalReview:
		return to == StatusWaitingForSample || to == StatusRejected
	case StatusWaitingForSample:
		return to == StatusInQualityReview
	case StatusInQualityReview:
		return to == StatusActiveVerified || to == StatusRejected
	}
	return false
}
