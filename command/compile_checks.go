package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RunSyncMessage]             = (*RunSyncCommand)(nil)
	_ gocmd.Commander[ResumeRunMessage]           = (*ResumeRunCommand)(nil)
	_ gocmd.Commander[PromoteRuleMessage]         = (*PromoteRuleCommand)(nil)
	_ gocmd.Commander[ResetCrossReferenceMessage] = (*ResetCrossReferenceCommand)(nil)
)
