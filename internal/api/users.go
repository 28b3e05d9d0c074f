// CLAUDE:SUMMARY Reputation handlers — score lookup and event history by wallet address
package api

import (
	"net/http"

	"github.com/hazyhaar/proofmine/internal/auth"
	"github.com/hazyhaar/proofmine/internal/db"
)

type reputationResponse struct {
	WalletAddress       string  `json:"wallet_address"`
	ReputationScore     int     `json:"reputation_score"`
	TotalTasksCompleted int     `json:"total_tasks_completed"`
	TotalRewardsEarned  float64 `json:"total_rewards_earned"`
}

func (a *API) userFromPath(w http.ResponseWriter, r *http.Request) (*db.User, bool) {
	wallet, err := auth.NormalizeWallet(r.PathValue("wallet_address"))
	if err != nil {
		jsonError(w, "invalid wallet address", http.StatusBadRequest)
		return nil, false
	}
	u, err := a.store.GetUserByWallet(r.Context(), wallet)
	if err != nil {
		storeError(w, err, "user")
		return nil, false
	}
	return u, true
}

func (a *API) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	u, ok := a.userFromPath(w, r)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, reputationResponse{
		WalletAddress:       u.WalletAddress,
		ReputationScore:     u.ReputationScore,
		TotalTasksCompleted: u.TotalTasksCompleted,
		TotalRewardsEarned:  u.TotalRewardsEarned,
	})
}

func (a *API) handleListReputationEvents(w http.ResponseWriter, r *http.Request) {
	u, ok := a.userFromPath(w, r)
	if !ok {
		return
	}
	events, err := a.store.ListReputationEvents(r.Context(), u.ID, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		storeError(w, err, "reputation events")
		return
	}
	if events == nil {
		events = []*db.ReputationEvent{}
	}
	jsonResp(w, http.StatusOK, events)
}
