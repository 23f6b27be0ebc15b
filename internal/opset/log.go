package opset

import (
	"crdtbackend/internal/opsetmodel"

	"go.uber.org/zap"
)

func zapActor(a opsetmodel.Actor) zap.Field { return zap.String("actor", string(a)) }
func zapSeq(seq uint64) zap.Field           { return zap.Uint64("seq", seq) }
