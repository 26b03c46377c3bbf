//go:build !linux

package bluetooth

import (
	"context"
	"io"

	"github.com/iamasit07/snakesync/internal/domain"
)

type unsupportedRadio struct{}

// NewRadio has no backend outside Linux; every call reports domain.ErrUnsupported.
func NewRadio(adapter string) (Radio, error) {
	return unsupportedRadio{}, nil
}

func (unsupportedRadio) Check(ctx context.Context) error { return domain.ErrUnsupported }

func (unsupportedRadio) Inquire(ctx context.Context, found func(Device)) error {
	return domain.ErrUnsupported
}

func (unsupportedRadio) Bonded(ctx context.Context) ([]Device, error) {
	return nil, domain.ErrUnsupported
}

func (unsupportedRadio) Listen(ctx context.Context, channel int) (Listener, error) {
	return nil, domain.ErrUnsupported
}

func (unsupportedRadio) Dial(ctx context.Context, address string, channel int) (io.ReadWriteCloser, error) {
	return nil, domain.ErrUnsupported
}

func (unsupportedRadio) LocalAddress() string { return "" }

func (unsupportedRadio) LocalName() string { return "" }
