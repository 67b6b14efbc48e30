package main

import (
	"context"

	identityservice "trustgrid/internal/identity/service"
	reputationmodels "trustgrid/internal/reputation/models"
	reputationservice "trustgrid/internal/reputation/service"
	stakingservice "trustgrid/internal/staking/service"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

// The adapters below connect module services through the narrow interfaces
// each consumer declares. Services never import each other; all coupling
// lives here.

// scoreInitializer lets the identity registry create the reputation record
// at identity birth.
type scoreInitializer struct {
	reputation *reputationservice.Service
}

func (a scoreInitializer) InitializeScore(ctx context.Context, identityID id.IdentityID) error {
	_, err := a.reputation.InitializeScore(ctx, identityID)
	return err
}

// identityRegistry exposes the identity registry to the oracle and the
// credential module.
type identityRegistry struct {
	identities *identityservice.Service
}

func (a identityRegistry) Exists(ctx context.Context, identityID id.IdentityID) error {
	_, err := a.identities.GetIdentity(ctx, identityID)
	return err
}

func (a identityRegistry) SetVerificationBit(ctx context.Context, identityID id.IdentityID, t id.VerificationType, set bool) error {
	return a.identities.SetVerificationBit(ctx, identityID, t, set)
}

// stakeBalances answers the oracle's registration check. An owner with no
// stake account simply has zero stake.
type stakeBalances struct {
	staking *stakingservice.Service
}

func (a stakeBalances) StakedAmount(ctx context.Context, owner id.Key) (uint64, error) {
	account, err := a.staking.GetAccount(ctx, owner)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.StakedAmount, nil
}

// reputationRecorder translates module outcomes into reputation events.
// Stakers without an identity generate no event; staking does not require
// registration.
type reputationRecorder struct {
	identities *identityservice.Service
	reputation *reputationservice.Service
}

func (a reputationRecorder) applyByOwner(ctx context.Context, owner id.Key, eventType reputationmodels.EventType) error {
	identity, err := a.identities.GetIdentityByOwner(ctx, owner)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil
		}
		return err
	}
	_, err = a.reputation.ApplyEvent(ctx, identity.ID, eventType)
	return err
}

func (a reputationRecorder) RecordStakeDeposited(ctx context.Context, owner id.Key) error {
	return a.applyByOwner(ctx, owner, reputationmodels.EventStakeDeposited)
}

func (a reputationRecorder) RecordStakeSlashed(ctx context.Context, owner id.Key) error {
	return a.applyByOwner(ctx, owner, reputationmodels.EventStakeSlashed)
}

func (a reputationRecorder) RecordVerificationCompleted(ctx context.Context, identityID id.IdentityID) error {
	_, err := a.reputation.ApplyEvent(ctx, identityID, reputationmodels.EventVerificationCompleted)
	return err
}

func (a reputationRecorder) RecordVerificationFailed(ctx context.Context, identityID id.IdentityID) error {
	_, err := a.reputation.ApplyEvent(ctx, identityID, reputationmodels.EventVerificationFailed)
	return err
}

func (a reputationRecorder) RecordCredentialIssued(ctx context.Context, identityID id.IdentityID) error {
	_, err := a.reputation.ApplyEvent(ctx, identityID, reputationmodels.EventCredentialIssued)
	return err
}

func (a reputationRecorder) RecordCredentialRevoked(ctx context.Context, identityID id.IdentityID) error {
	_, err := a.reputation.ApplyEvent(ctx, identityID, reputationmodels.EventCredentialRevoked)
	return err
}
