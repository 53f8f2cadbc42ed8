package api

import (
	"net/http"

	"finpilot-server/src/handlers"
	"finpilot-server/src/middleware"
	"finpilot-server/src/realtime"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	ReadOnly       bool
}

func NewRouter(env *handlers.Env, hub *realtime.Hub, opts Options) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))
	r.Use(middleware.ReadOnlyMiddleware(opts.ReadOnly, opts.JWTSecret))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	auth := middleware.JWTAuthMiddleware(opts.JWTSecret)

	r.Route("/api", func(r chi.Router) {
		r.Post("/plaid/webhook", handlers.PlaidWebhook(env))
		r.Get("/cache/keys/{tag}", handlers.GetInvalidationKeys())

		// Protected routes
		r.With(auth).Group(func(r chi.Router) {
			r.Get("/realtime", handlers.Realtime(hub))

			// Plaid and accounts
			r.Post("/plaid/link-token", handlers.CreateLinkToken(env))
			r.Post("/plaid/exchange", handlers.ExchangePublicToken(env))
			r.Post("/plaid/sync/{account_id}", handlers.SyncAccount(env))
			r.Get("/accounts", handlers.GetAccounts(env))
			r.Delete("/accounts/{account_id}", handlers.DeleteAccount(env))
			r.Get("/net-worth", handlers.GetNetWorth(env))

			// Transactions
			r.Get("/transactions", handlers.GetTransactions(env))
			r.Post("/transactions", handlers.CreateTransaction(env))
			r.Put("/transactions/{id}/category", handlers.CategorizeTransaction(env))
			r.Delete("/transactions/{id}", handlers.DeleteTransaction(env))

			// Budgets
			r.Get("/budgets", handlers.GetBudgets(env))
			r.Post("/budgets", handlers.CreateBudget(env))
			r.Get("/budgets/pacing", handlers.GetBudgetPacing(env))
			r.Put("/budgets/{id}", handlers.UpdateBudget(env))
			r.Delete("/budgets/{id}", handlers.DeleteBudget(env))

			// Goals, pots and debts
			r.Get("/goals", handlers.GetGoals(env))
			r.Post("/goals", handlers.CreateGoal(env))
			r.Post("/goals/{id}/contribute", handlers.ContributeToGoal(env))
			r.Delete("/goals/{id}", handlers.DeleteGoal(env))
			r.Get("/pots", handlers.GetPots(env))
			r.Post("/pots", handlers.CreatePot(env))
			r.Post("/pots/{id}/deposit", handlers.MovePotFunds(env, false))
			r.Post("/pots/{id}/withdraw", handlers.MovePotFunds(env, true))
			r.Get("/debts", handlers.GetDebts(env))
			r.Post("/debts", handlers.CreateDebt(env))
			r.Post("/debts/{id}/payment", handlers.PayDebt(env))

			// Category rules
			r.Get("/category-rules", handlers.GetCategoryRules(env))
			r.Post("/category-rules", handlers.CreateCategoryRule(env))
			r.Post("/category-rules/apply", handlers.ApplyCategoryRules(env))
			r.Delete("/category-rules/{id}", handlers.DeleteCategoryRule(env))

			// Round-ups and profile
			r.Get("/roundups/preview", handlers.GetRoundupPreview(env))
			r.Post("/roundups/sweep", handlers.SweepRoundups(env))
			r.Get("/profile", handlers.GetProfile(env))
			r.Put("/profile", handlers.UpdateProfile(env))

			// Market data and insights
			r.Get("/prices/crypto", handlers.GetCryptoPrices(env))
			r.Get("/prices/stock/{symbol}", handlers.GetStockQuote(env))
			r.Get("/fx", handlers.GetExchangeRates(env))
			r.Get("/insights", handlers.GetInsights(env))
			r.Post("/insights", handlers.CreateInsight(env))

			// Wallets
			r.Get("/wallets", handlers.GetWallets(env))
			r.Post("/wallets", handlers.AddWallet(env))
			r.Delete("/wallets/{id}", handlers.RemoveWallet(env))
			r.Get("/wallet-notifications", handlers.GetWalletNotifications(env))
			r.Post("/wallet-notifications/{id}/read", handlers.MarkWalletNotificationRead(env))
			r.Get("/integrations/status", handlers.GetIntegrationStatus(env))
		})

		// Admin routes
		r.With(auth, middleware.AdminMiddleware).Group(func(r chi.Router) {
			r.Post("/admin/cache/clear/{partition}", handlers.ClearCache(env))
		})
	})

	return r
}
