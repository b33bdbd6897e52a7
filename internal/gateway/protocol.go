package gateway

import (
	"github.com/mbeoliero/tutorchat/internal/service"
)

// pushTask is an ordered batch of pushes produced by one operation
type pushTask struct {
	key    string
	pushes []service.Push
}
