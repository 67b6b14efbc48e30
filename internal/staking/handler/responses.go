package handler

import "trustgrid/internal/staking/models"

// CompleteUnstakeResponse reports the account after release and how many
// tokens left the pool.
type CompleteUnstakeResponse struct {
	Account  *models.StakeAccount `json:"account"`
	Released uint64               `json:"released"`
}

// SlashResponse reports the account after a slash and the amount actually
// burned, which may be less than requested.
type SlashResponse struct {
	Account *models.StakeAccount `json:"account"`
	Slashed uint64               `json:"slashed"`
}
