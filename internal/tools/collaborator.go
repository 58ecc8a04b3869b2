package tools

// CollaboratorTool wraps an external grab-step tool (rsync, git, svn, fcm,
// psyclone) that the core never calls directly — only the grab/pre-build
// stage outside this module's scope does — but which must still satisfy
// ToolBox registration so a full .fab.kdl can name every category.
type CollaboratorTool struct {
	BaseTool
}

// NewCollaboratorTool wraps execName under category.
func NewCollaboratorTool(name, execName string, category Category) *CollaboratorTool {
	return &CollaboratorTool{BaseTool: NewBaseTool(name, execName, category, []string{"--version"})}
}
