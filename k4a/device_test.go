package k4a

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

var errUSB = errors.New("usb transfer failed")

func TestUnavailable(t *testing.T) {
	err := Unavailable(errUSB, "starting streams on %q", "abc")
	test.That(t, errors.Is(err, ErrDeviceUnavailable), test.ShouldBeTrue)
	test.That(t, errors.Is(err, errUSB), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `starting streams on "abc": usb transfer failed`)
}

type openerFunc func(ctx context.Context, serial string) (Device, error)

func (f openerFunc) Open(ctx context.Context, serial string) (Device, error) {
	return f(ctx, serial)
}

func TestWithDeviceOpenFailure(t *testing.T) {
	called := false
	err := WithDevice(context.Background(), openerFunc(func(context.Context, string) (Device, error) {
		return nil, errUSB
	}), "abc", func(Device) error {
		called = true
		return nil
	})
	test.That(t, called, test.ShouldBeFalse)
	test.That(t, errors.Is(err, ErrDeviceUnavailable), test.ShouldBeTrue)
	test.That(t, errors.Is(err, errUSB), test.ShouldBeTrue)
}
