package browser

import (
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

// scrollSteps is how many wheel moves it takes to walk a full results page.
const scrollSteps = 4

// RandomDelay sleeps for a random duration in [min, max) milliseconds.
func RandomDelay(min, max int) {
	if min >= max {
		time.Sleep(time.Duration(min) * time.Millisecond)
		return
	}
	time.Sleep(time.Duration(rand.Intn(max-min)+min) * time.Millisecond)
}

// MouseJiggle moves the pointer somewhere inside the viewport.
func MouseJiggle(page playwright.Page) {
	x := float64(rand.Intn(1000) + 150)
	y := float64(rand.Intn(500) + 120)
	_ = page.Mouse().Move(x, y, playwright.MouseMoveOptions{Steps: playwright.Int(rand.Intn(8) + 3)})
	RandomDelay(100, 300)
}

// SmoothScroll walks down the page in uneven steps, backs up once like a reader
// would, then jumps to the bottom so lazily rendered cards attach.
func SmoothScroll(page playwright.Page) {
	MouseJiggle(page)

	for i := 0; i < scrollSteps; i++ {
		_ = page.Mouse().Wheel(0, float64(350+rand.Intn(300)))
		RandomDelay(250, 600)
	}

	_ = page.Mouse().Wheel(0, -float64(150+rand.Intn(150)))
	RandomDelay(300, 600)

	_, _ = page.Evaluate("window.scrollTo(0, document.body.scrollHeight)")
	RandomDelay(200, 400)
}
