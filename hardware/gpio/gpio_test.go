package gpio

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gpio "github.com/temoto/gpio-cdev-go"
	gpio_mock "github.com/temoto/gpio-cdev-go/mock"
)

func TestButtons(t *testing.T) {
	t.Parallel()

	chip := &gpio_mock.MockChip{}
	lines := &gpio_mock.MockLines{}
	flag := gpio.GPIOHANDLE_REQUEST_INPUT | gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW
	// offsets follow sorted names: a b up
	chip.On("OpenLines", flag, Consumer, uint32(17), uint32(5), uint32(23)).Return(lines, nil).Once()
	b, err := NewButtons(chip, map[string]int{"up": 23, "a": 17, "b": 5}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "up"}, b.Names())

	data := gpio.HandleData{}
	data.Values[1] = 1
	lines.On("Read").Return(data, nil).Once()
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": false, "b": true, "up": false}, snap)

	lines.On("Read").Return(gpio.HandleData{}, errors.New("ioctl failed")).Once()
	_, err = b.Snapshot()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gpio buttons read")

	lines.On("Close").Return(nil).Once()
	require.NoError(t, b.Close())
	chip.AssertExpectations(t)
	lines.AssertExpectations(t)
}

func TestButtonsInvalid(t *testing.T) {
	t.Parallel()

	chip := &gpio_mock.MockChip{}
	_, err := NewButtons(chip, nil, false)
	assert.True(t, errors.IsNotValid(err))
	_, err = NewButtons(chip, map[string]int{"a": -1}, false)
	assert.True(t, errors.IsNotValid(err))
	chip.AssertNotCalled(t, "OpenLines")
}

func TestLED(t *testing.T) {
	t.Parallel()

	chip := &gpio_mock.MockChip{}
	lines := &gpio_mock.MockLines{}
	var values []byte
	set := gpio.LineSetFunc(func(v byte) { values = append(values, v) })
	chip.On("OpenLines", gpio.GPIOHANDLE_REQUEST_OUTPUT, Consumer, uint32(4)).Return(lines, nil).Once()
	lines.On("SetFunc", uint32(4)).Return(set).Once()
	lines.On("Flush").Return(nil).Times(3)
	led, err := NewLED(chip, 4)
	require.NoError(t, err)

	require.NoError(t, led.Set(true))
	require.NoError(t, led.Set(false))
	require.NoError(t, led.Set(true))
	assert.Equal(t, []byte{1, 0, 1}, values)
	lines.AssertExpectations(t)
}
