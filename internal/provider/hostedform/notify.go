package hostedform

import (
	"crypto/rsa"
	"net/url"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
)

// StatusApproved is the provider's result code for a captured payment.
const StatusApproved = "00"

// Notification is a notify callback whose signature has been checked.
// Its fields are still provider-reported values; Amount in particular must
// be compared against the order token before it means anything.
type Notification struct {
	Status        string
	OrderID       string
	Amount        string
	Currency      string
	Token         string
	TransactionID string
}

func (n *Notification) Approved() bool {
	return n.Status == StatusApproved
}

func (n *Notification) Refs() booking.ProviderRefs {
	return booking.ProviderRefs{TransactionID: n.TransactionID}
}

type Verifier struct {
	pub *rsa.PublicKey
}

func NewVerifier(pub *rsa.PublicKey) *Verifier {
	return &Verifier{pub: pub}
}

// Verify checks the provider signature over the sorted remaining fields and
// only then reads them. Any structural problem is reported as
// ErrInvalidSignature.
func (v *Verifier) Verify(values url.Values) (*Notification, error) {
	fields, err := fieldsFromValues(values)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	signature := values.Get(FieldSignature)
	if signature == "" || v.pub == nil {
		return nil, ErrInvalidSignature
	}
	if err := verify(v.pub, Canonical(fields), signature); err != nil {
		return nil, err
	}

	return &Notification{
		Status:        values.Get(FieldStatus),
		OrderID:       values.Get(FieldOrderID),
		Amount:        values.Get(FieldAmount),
		Currency:      values.Get(FieldCurrency),
		Token:         values.Get(FieldCustomData),
		TransactionID: values.Get(FieldTransactionID),
	}, nil
}
