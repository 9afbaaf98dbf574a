package dto

type AuthorizePaymentRequest struct {
	Mode          string `json:"mode" validate:"omitempty,oneof=live simulated"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"omitempty,len=3"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	WithCaution   bool   `json:"with_caution"`
}

type RefRequest struct {
	Kind string `json:"kind" validate:"required,oneof=live simulated"`
	ID   string `json:"id" validate:"required"`
}

type CreateReservationRequest struct {
	ListingID           uint        `json:"listing_id" validate:"required"`
	CheckIn             string      `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut            string      `json:"check_out" validate:"required,datetime=2006-01-02"`
	GuestsCount         int         `json:"guests_count" validate:"required,gte=1"`
	AccommodationAmount int64       `json:"accommodation_amount" validate:"required,gt=0"`
	TaxAmount           int64       `json:"tax_amount" validate:"gte=0"`
	TotalPrice          int64       `json:"total_price" validate:"required,gt=0"`
	TransactionRef      RefRequest  `json:"transaction_ref" validate:"required"`
	CautionRef          *RefRequest `json:"caution_ref,omitempty" validate:"omitempty"`
	RefundDeadlineFull  string      `json:"refund_deadline_full,omitempty" validate:"omitempty,datetime=2006-01-02,required_with=RefundDeadlineZero"`
	RefundDeadlineZero  string      `json:"refund_deadline_zero,omitempty" validate:"omitempty,datetime=2006-01-02,required_with=RefundDeadlineFull"`
}

type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
	Reason   string `json:"reason" validate:"max=500"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}
