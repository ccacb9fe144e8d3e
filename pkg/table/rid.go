package table

import (
	"fmt"

	"github.com/kasuganosora/pagedb/pkg/storage"
)

// RID 行标识符：页号 + 槽号。行存续期间保持稳定，删除后不复用。
type RID struct {
	PageID  storage.PageID
	SlotNum uint16
}

// InvalidRID 无效行标识符
var InvalidRID = RID{PageID: storage.InvalidPageID}

// String 返回展示形式
func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageID, r.SlotNum)
}
