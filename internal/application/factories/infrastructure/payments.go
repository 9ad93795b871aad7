package infrastructure

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/ordertoken"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/pricing"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider/hostedform"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider/orderapi"
)

// Payments holds the configured checkout strategies and the matching
// callback verifiers. Verifiers are nil for providers that are not set up.
type Payments struct {
	Registry        provider.Registry
	NotifyVerifier  *hostedform.Verifier
	WebhookVerifier *orderapi.WebhookVerifier
	OrderAPI        *orderapi.Client
}

func (f *Factory) TokenCodec() *ordertoken.Codec {
	return ordertoken.NewCodec([]byte(f.cfg.Token.Secret), ordertoken.WithMaxAge(f.cfg.Token.MaxAge))
}

// PricingEngine loads the catalog file when one is configured, otherwise
// the built-in table priced in the configured currency.
func (f *Factory) PricingEngine() (*pricing.Engine, error) {
	if f.cfg.Catalog.Path == "" {
		table := pricing.DefaultTable()
		table.Currency = strings.ToUpper(f.cfg.Payments.Currency)
		return pricing.NewEngine(table), nil
	}

	table, err := pricing.LoadTable(f.cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	if table.Currency == "" {
		table.Currency = strings.ToUpper(f.cfg.Payments.Currency)
	}
	slog.Info("price catalog loaded", "path", f.cfg.Catalog.Path, "routes", len(table.Routes))
	return pricing.NewEngine(table), nil
}

func (f *Factory) Payments() (*Payments, error) {
	env := provider.ParseEnvironment(f.cfg.Payments.Environment)
	p := &Payments{}
	var strategies []provider.Provider

	if hf := f.cfg.HostedForm; hf.Enabled() {
		key, err := hostedform.LoadPrivateKey(hf.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("hosted form merchant key: %w", err)
		}
		pub, err := hostedform.LoadPublicKey(hf.ProviderCertPath)
		if err != nil {
			return nil, fmt.Errorf("hosted form provider certificate: %w", err)
		}

		strategies = append(strategies, hostedform.New(hostedform.Config{
			MerchantID:    hf.MerchantID,
			WalletID:      hf.WalletID,
			KeyIndex:      hf.KeyIndex,
			SuccessURL:    f.cfg.Payments.SuccessURL,
			CancelURL:     f.cfg.Payments.CancelURL,
			NotifyURL:     f.cfg.Payments.NotifyURL,
			Environment:   env,
			SandboxURL:    hf.SandboxURL,
			ProductionURL: hf.ProductionURL,
		}, hostedform.NewSigner(key)))
		p.NotifyVerifier = hostedform.NewVerifier(pub)
	}

	if oa := f.cfg.OrderAPI; oa.Enabled() {
		p.OrderAPI = orderapi.NewClient(orderapi.Config{
			SecretKey:     oa.SecretKey,
			APIVersion:    oa.APIVersion,
			Environment:   env,
			SandboxURL:    oa.SandboxURL,
			ProductionURL: oa.ProductionURL,
			Timeout:       oa.Timeout,
		})
		strategies = append(strategies, orderapi.New(p.OrderAPI))
		p.WebhookVerifier = orderapi.NewWebhookVerifier(oa.WebhookSecret)
	}

	p.Registry = provider.NewRegistry(strategies...)
	slog.Info("payment providers configured",
		"environment", env,
		"hostedform", p.NotifyVerifier != nil,
		"orderapi", p.OrderAPI != nil,
	)
	return p, nil
}
