package tab

// TabIDPrefix is the category prefix of every NPU tab id.
const TabIDPrefix = "npu"

// Identity addresses one physical device across refresh cycles.
type Identity struct {
	TabID     string `json:"tab_id"`
	TabDetail string `json:"tab_detail"`
}

// NewIdentity builds the identity of a device from its bus slot and its
// model name. An empty model name leaves the detail empty.
func NewIdentity(busSlot, modelName string) Identity {
	return Identity{
		TabID:     TabIDPrefix + "-" + busSlot,
		TabDetail: modelName,
	}
}
