package directory

import (
	"encoding/json"
	"math/big"
	"os"

	"github.com/stablerouter/router/internal/domain"
)

// seedAgent/seedUser are the on-disk shapes for LoadSeedFile; Agent and User
// are otherwise owned by an external system this router does not run.
type seedAgent struct {
	ID                  string `json:"id"`
	PricePerCallUSD     string `json:"pricePerCallUsd"`
	PayoutToken         string `json:"payoutToken"`
	PayoutChainID       int64  `json:"payoutChainId"`
	PublisherWalletAddr string `json:"publisherWalletAddress"`
	APIEndpoint         string `json:"apiEndpoint"`
	PublisherAPIKey     string `json:"publisherApiKey"`
	FreeTrialTries      int64  `json:"freeTrialTries"`
}

type seedUser struct {
	ID         string `json:"id"`
	APIKey     string `json:"apiKey"`
	Address    string `json:"address"`
	IsApproved bool   `json:"isApproved"`
}

type seedFile struct {
	Agents []seedAgent `json:"agents"`
	Users  []seedUser  `json:"users"`
}

// LoadSeedFile populates d from a JSON file of agents and users, the
// stand-in for the external provisioning system until one is wired in.
func LoadSeedFile(d *Directory, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sf seedFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return err
	}
	for _, a := range sf.Agents {
		price, ok := new(big.Rat).SetString(a.PricePerCallUSD)
		if !ok {
			price = big.NewRat(0, 1)
		}
		d.PutAgent(&domain.Agent{
			ID:                  a.ID,
			PricePerCallUSD:     price,
			PaymentPreferences:  domain.PaymentPreferences{PayoutToken: a.PayoutToken, PayoutChainID: a.PayoutChainID},
			PublisherWalletAddr: a.PublisherWalletAddr,
			APIEndpoint:         a.APIEndpoint,
			PublisherAPIKey:     a.PublisherAPIKey,
			FreeTrialTries:      a.FreeTrialTries,
		})
	}
	for _, u := range sf.Users {
		d.PutUser(&domain.User{ID: u.ID, APIKey: u.APIKey, Address: u.Address, IsApproved: u.IsApproved})
	}
	return nil
}
