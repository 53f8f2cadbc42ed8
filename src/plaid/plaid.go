package plaid

import (
	"context"
	"fmt"

	"github.com/plaid/plaid-go/v41/plaid"
)

// Service wraps the Plaid API calls the server makes.
type Service struct {
	api        *plaid.APIClient
	webhookURL string
	verifier   *webhookVerifier
}

// SyncResult is the outcome of draining /transactions/sync from a cursor.
type SyncResult struct {
	Added    []plaid.Transaction
	Modified []plaid.Transaction
	Removed  []string
	Cursor   string
}

func NewPlaidClient(clientID, secret, env string) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid Plaid environment: %q", env)
	}

	return plaid.NewAPIClient(configuration), nil
}

func NewService(api *plaid.APIClient, webhookURL string) *Service {
	s := &Service{api: api, webhookURL: webhookURL}
	s.verifier = newWebhookVerifier(s.verificationKey)
	return s
}

func (s *Service) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{ClientUserId: userID}
	request := plaid.NewLinkTokenCreateRequest("FinPilot", "en", []plaid.CountryCode{plaid.COUNTRYCODE_US})
	request.SetUser(user)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	if s.webhookURL != "" {
		request.SetWebhook(s.webhookURL)
	}

	resp, _, err := s.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", fmt.Errorf("link token create: %w", err)
	}
	return resp.GetLinkToken(), nil
}

// LinkedItem is what a successful Link exchange yields.
type LinkedItem struct {
	AccessToken     string
	ItemID          string
	InstitutionID   string
	InstitutionName string
}

// ExchangePublicToken trades a Link public token for an access token and
// resolves the institution's name.
func (s *Service) ExchangePublicToken(ctx context.Context, publicToken string) (*LinkedItem, error) {
	exchange, _, err := s.api.PlaidApi.ItemPublicTokenExchange(ctx).
		ItemPublicTokenExchangeRequest(*plaid.NewItemPublicTokenExchangeRequest(publicToken)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("public token exchange: %w", err)
	}
	linked := &LinkedItem{AccessToken: exchange.GetAccessToken(), ItemID: exchange.GetItemId()}

	itemResp, _, err := s.api.PlaidApi.ItemGet(ctx).ItemGetRequest(*plaid.NewItemGetRequest(linked.AccessToken)).Execute()
	if err != nil {
		return nil, fmt.Errorf("item get: %w", err)
	}
	item := itemResp.GetItem()
	linked.InstitutionID = item.GetInstitutionId()
	if linked.InstitutionID == "" {
		return linked, nil
	}

	inst, _, err := s.api.PlaidApi.InstitutionsGetById(ctx).
		InstitutionsGetByIdRequest(*plaid.NewInstitutionsGetByIdRequest(linked.InstitutionID, []plaid.CountryCode{plaid.COUNTRYCODE_US})).
		Execute()
	if err != nil {
		// The name is cosmetic; keep the link.
		return linked, nil
	}
	institution := inst.GetInstitution()
	linked.InstitutionName = institution.GetName()
	return linked, nil
}

func (s *Service) Accounts(ctx context.Context, accessToken string) ([]plaid.AccountBase, error) {
	resp, _, err := s.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*plaid.NewAccountsGetRequest(accessToken)).Execute()
	if err != nil {
		return nil, fmt.Errorf("accounts get: %w", err)
	}
	return resp.GetAccounts(), nil
}

// SyncTransactions pages through /transactions/sync starting at cursor until
// Plaid reports no more updates.
func (s *Service) SyncTransactions(ctx context.Context, accessToken, cursor string) (*SyncResult, error) {
	result := &SyncResult{Cursor: cursor}
	for {
		request := plaid.NewTransactionsSyncRequest(accessToken)
		if result.Cursor != "" {
			request.SetCursor(result.Cursor)
		}
		resp, _, err := s.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
		if err != nil {
			return nil, fmt.Errorf("transactions sync: %w", err)
		}

		result.Added = append(result.Added, resp.GetAdded()...)
		result.Modified = append(result.Modified, resp.GetModified()...)
		for _, removed := range resp.GetRemoved() {
			result.Removed = append(result.Removed, removed.GetTransactionId())
		}
		result.Cursor = resp.GetNextCursor()

		if !resp.GetHasMore() {
			return result, nil
		}
	}
}

func (s *Service) RemoveItem(ctx context.Context, accessToken string) error {
	_, _, err := s.api.PlaidApi.ItemRemove(ctx).ItemRemoveRequest(*plaid.NewItemRemoveRequest(accessToken)).Execute()
	if err != nil {
		return fmt.Errorf("item remove: %w", err)
	}
	return nil
}
