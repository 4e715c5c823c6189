package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// RetryPolicy bounds how often a transient store failure is retried.
type RetryPolicy struct {
	MaxRetries  int
	Initial     time.Duration
	MaxInterval time.Duration
}

// RetryPolicyFromConfig maps storage settings onto a policy.
func RetryPolicyFromConfig(cfg config.StorageConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:  cfg.MaxRetries,
		Initial:     cfg.RetryInitial(),
		MaxInterval: cfg.RetryMaxInterval(),
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		exp.InitialInterval = p.Initial
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// do runs op, retrying only repository.ErrUnavailable.
func (p RetryPolicy) do(ctx context.Context, op func(ctx context.Context) error) error {
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil || errors.Is(err, repository.ErrUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}, p.backOff(ctx))
}

// storeError converts repository failures into domain errors. resource names the
// thing that was missing for not-found results.
func storeError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(resource+" already exists", nil)
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewStorageError(err)
	case errors.Is(err, context.Canceled):
		return err
	}
	return apperrors.NewInternalError(err)
}
