package service

import (
	"context"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/sirupsen/logrus"
)

type AuthorizeInput struct {
	Kind          gateway.RefKind
	Amount        int64
	Currency      string
	PaymentMethod string
	WithCaution   bool
}

type AuthorizeResult struct {
	TransactionRef gateway.Ref    `json:"transaction_ref"`
	Status         gateway.Status `json:"status"`
	CautionRef     gateway.Ref    `json:"caution_ref,omitempty"`
}

// PaymentService places the holds a guest needs before a reservation can be
// requested.
type PaymentService interface {
	Authorize(ctx context.Context, in AuthorizeInput) (*AuthorizeResult, error)
}

type paymentService struct {
	Dependencies
}

func NewPaymentService(deps Dependencies) PaymentService {
	return &paymentService{Dependencies: deps}
}

func (s *paymentService) Authorize(ctx context.Context, in AuthorizeInput) (*AuthorizeResult, error) {
	if in.Kind == "" {
		in.Kind = gateway.KindLive
	}
	switch {
	case !in.Kind.Valid():
		return nil, validationError("unknown payment mode %q", in.Kind)
	case in.Amount <= 0:
		return nil, validationError("amount must be positive")
	case in.PaymentMethod == "":
		return nil, validationError("payment_method is required")
	}

	primary, err := s.Gateway.Authorize(ctx, in.Kind, in.Amount, in.Currency, in.PaymentMethod)
	if err != nil {
		return nil, gatewayError(err)
	}
	out := &AuthorizeResult{TransactionRef: primary.Ref, Status: primary.Status}
	if !in.WithCaution {
		return out, nil
	}

	caution, err := s.Gateway.AuthorizeCautionHold(ctx, in.Kind, in.PaymentMethod)
	if err != nil {
		if cerr := s.Gateway.CancelAuthorization(ctx, primary.Ref); cerr != nil {
			s.Logger.WithFields(logrus.Fields{
				"ref":                 primary.Ref.String(),
				"consistency_warning": true,
			}).WithError(cerr).Warn("primary hold not released after caution failure")
		}
		return nil, gatewayError(err)
	}
	out.CautionRef = caution.Ref
	return out, nil
}
