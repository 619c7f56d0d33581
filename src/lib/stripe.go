package lib

import (
	"context"
	"os"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

// NewStripeClient replaces the client instance, used by tests
func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

func CreatePaymentIntent(amount int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	sc := GetStripeClient()
	params := stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		Metadata: metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	pi, err := sc.V1PaymentIntents.Create(context.Background(), &params)
	return pi, err
}

func RetrievePaymentIntent(id string) (*stripe.PaymentIntent, error) {
	sc := GetStripeClient()
	pi, err := sc.V1PaymentIntents.Retrieve(context.Background(), id, &stripe.PaymentIntentRetrieveParams{})
	return pi, err
}

func RefundPaymentIntent(id string) (*stripe.Refund, error) {
	sc := GetStripeClient()
	params := stripe.RefundCreateParams{
		PaymentIntent: stripe.String(id),
	}
	refund, err := sc.V1Refunds.Create(context.Background(), &params)
	return refund, err
}
