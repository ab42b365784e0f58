package app

import (
	"fmt"

	"github.com/temoto/zeos/hardware/display"
	"github.com/temoto/zeos/internal/codec"
	"github.com/temoto/zeos/internal/types"
)

// Item can be bought for lines of code. Every owned item adds Output per tick.
type Item struct {
	Name   string
	Costs  []int
	Output int
}

var ClickerItems = []Item{
	{"programmer", []int{10, 100, 1000, 10000}, 1},
	{"better ide", []int{20, 30, 40, 50}, 2},
	{"better hardware", []int{100, 200, 250, 300, 350}, 2},
	{"blue filter glasses", []int{80, 80, 80, 80}, 2},
	{"bella", []int{80}, 2},
	{"ziggy", []int{80}, 2},
	{"third pair of hands", []int{160}, 2},
	{"switch one class from java to kotlin", []int{320}, 2},
}

const (
	symbolSize   = 8
	symbolsWide  = 17
	symbolsHigh  = 7
	scoreYOffset = 15
)

// Inventory slot for a grid cell, a rectangular spiral from the center out.
var spiral = [symbolsHigh * symbolsWide]int{
	112, 98, 90, 76, 62, 46, 47, 48, 25, 26, 27, 28, 49, 63, 77, 91, 105,
	113, 99, 89, 75, 61, 45, 23, 24, 9, 10, 11, 29, 50, 64, 78, 92, 106,
	114, 100, 88, 74, 60, 44, 22, 8, 1, 2, 12, 30, 51, 65, 79, 93, 107,
	115, 101, 87, 73, 59, 43, 21, 7, 0, 3, 13, 31, 52, 66, 80, 94, 108,
	116, 102, 86, 72, 58, 42, 20, 6, 5, 4, 14, 32, 53, 67, 81, 95, 109,
	117, 103, 85, 71, 57, 41, 19, 18, 17, 16, 15, 33, 54, 68, 82, 96, 110,
	118, 104, 84, 70, 56, 40, 39, 38, 37, 36, 35, 34, 55, 69, 83, 97, 111,
}

// Clicker is an idle clicker: every tick produces lines of code.
type Clicker struct {
	env          *Env
	subs         *Subscriptions
	positions    []struct{ x, y int }
	sprites      []*codec.Bitmap
	LinesOfCode  int
	Inventory    []int // indexes into ClickerItems
	needsRefresh bool
}

func NewClicker(env *Env) *Clicker {
	a := &Clicker{
		env:       env,
		subs:      NewSubscriptions(env.Bus),
		Inventory: []int{0},
	}
	offX := (env.Size.X - symbolsWide*symbolSize) / 2
	offY := (env.Size.Y - symbolsHigh*symbolSize) / 2
	a.positions = make([]struct{ x, y int }, len(spiral))
	for cell, slot := range spiral {
		a.positions[slot].x = offX + (cell%symbolsWide)*symbolSize
		a.positions[slot].y = offY + (cell/symbolsWide)*symbolSize
	}
	a.sprites = make([]*codec.Bitmap, len(ClickerItems))
	for i := range a.sprites {
		a.sprites[i] = sprite(i)
	}
	return a
}

func (*Clicker) Name() string { return "clicker" }

func (a *Clicker) Run() error {
	a.subs.Add(types.TopicInputsChanged, a.onInputs)
	a.subs.Add(types.TopicTick, a.onTick)
	a.needsRefresh = true
	return nil
}

func (a *Clicker) Unrun() { a.subs.Clear() }

func (a *Clicker) Output() int {
	sum := 0
	for _, i := range a.Inventory {
		sum += ClickerItems[i].Output
	}
	return sum
}

// Buy takes first item whose next price is affordable.
func (a *Clicker) Buy() (string, bool) {
	if len(a.Inventory) >= len(spiral) {
		return "", false
	}
	owned := make([]int, len(ClickerItems))
	for _, i := range a.Inventory {
		owned[i]++
	}
	for i, item := range ClickerItems {
		if owned[i] >= len(item.Costs) {
			continue
		}
		if cost := item.Costs[owned[i]]; cost <= a.LinesOfCode {
			a.LinesOfCode -= cost
			a.Inventory = append(a.Inventory, i)
			return item.Name, true
		}
	}
	return "", false
}

func (a *Clicker) onInputs(msg types.Message) error {
	ic := msg.(types.InputsChanged)
	if ic.Released("up") {
		if name, ok := a.Buy(); ok {
			a.env.Bus.Publish(types.Info{Text: "bought " + name})
		}
		a.needsRefresh = true
	}
	if ic.Released("down") {
		a.needsRefresh = true
	}
	return nil
}

func (a *Clicker) onTick(types.Message) error {
	a.LinesOfCode += a.Output()
	if a.needsRefresh {
		a.env.Bus.Publish(types.ShowGroup{Group: a.Render()})
		a.needsRefresh = false
	}
	return nil
}

func (a *Clicker) Render() display.Group {
	g := display.Group{}
	for slot, i := range a.Inventory {
		p := a.positions[slot]
		g.AddBitmap(p.x, p.y, a.sprites[i])
	}
	score := fmt.Sprintf("%d loc", a.LinesOfCode)
	x := (a.env.Size.X - len(score)*7) / 2
	g.AddText(x, a.env.Size.Y-scoreYOffset, score)
	return g
}

// sprite is an 8x8 frame with item index drawn as bits inside.
func sprite(index int) *codec.Bitmap {
	b := codec.NewBitmap(symbolSize, symbolSize)
	b.Fill(codec.White)
	for i := 0; i < symbolSize; i++ {
		b.Set(i, 0, codec.Black)
		b.Set(i, symbolSize-1, codec.Black)
		b.Set(0, i, codec.Black)
		b.Set(symbolSize-1, i, codec.Black)
	}
	for bit := 0; bit < 4; bit++ {
		if index&(1<<uint(bit)) != 0 {
			x := 2 + (bit%2)*2
			y := 2 + (bit/2)*2
			b.Set(x, y, codec.Black)
			b.Set(x+1, y, codec.Black)
			b.Set(x, y+1, codec.Black)
			b.Set(x+1, y+1, codec.Black)
		}
	}
	return b
}
