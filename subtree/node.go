package subtree

// Handle 是节点在树中的稳定句柄。零值表示“无节点”。
//
// 句柄只在创建它的树中有效，并在 Tree.Reset 后失效。
type Handle uint32

// node 是命名空间中的一个段（文件夹或新闻组），或者代表服务器本身的根节点。
//
// 同级节点按 name 严格降序链接：firstChild 是名称最大的子节点，lastChild 是名称最小的
// 子节点。prevSibling 和 parent 只用于遍历。
type node struct {
	name string // 协议编码的段名称（不是完整路径）
	path string // 从根到此节点的协议编码完整路径

	parent      Handle
	firstChild  Handle
	lastChild   Handle
	prevSibling Handle
	nextSibling Handle
	cachedChild Handle // 最近插入或查找的子节点，仅作快速路径提示

	subscribed   bool
	subscribable bool
	open         bool // 展开状态，新建节点默认为展开

	listed     bool // 是否由发现协作者显式报告过（而不仅仅是作为祖先被隐式创建）
	discovered bool // 发现时记录的订阅状态，用于计算待提交的变更
}
