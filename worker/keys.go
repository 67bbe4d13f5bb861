package worker

import "github.com/sourcekitd/langworker/sourcekitd"

// wireKeys resolves, once per Worker, every request/key/value UID the
// worker's compiler-service requests touch (spec §9 "opaque UID
// namespaces resolved once at load"; spec §6 lists the exact key/request
// names). Resolving through Client.Keys()/Requests()/Values() rather than
// hard-coding integers is what lets pluginclient and fakeclient share one
// vocabulary without agreeing on numbering.
type wireKeys struct {
	// requests
	reqEditorOpen        sourcekitd.UID
	reqEditorClose        sourcekitd.UID
	reqEditorReplaceText sourcekitd.UID
	reqRelatedIdents     sourcekitd.UID
	reqCrashExit         sourcekitd.UID
	reqCursorInfo        sourcekitd.UID
	reqCodeComplete      sourcekitd.UID
	reqSemanticRefactoring sourcekitd.UID

	// request keys
	keyRequest          sourcekitd.UID
	keyName             sourcekitd.UID
	keySourceText       sourcekitd.UID
	keyOffset           sourcekitd.UID
	keyLength           sourcekitd.UID
	keyCompilerArgs     sourcekitd.UID
	keySourceFile       sourcekitd.UID
	keySyntacticOnly    sourcekitd.UID
	keySyntaxMap        sourcekitd.UID
	keyEnableSyntaxMap  sourcekitd.UID
	keyRetrieveRefactor sourcekitd.UID

	// per-diagnostic stage (spec §4.3/§8 scenario 2: a single response can
	// carry both syntactic and semantic diagnostics, distinguished by this
	// field; a diagnostic with no stage field inherits the caller's
	// default stage)
	keyDiagnosticStage sourcekitd.UID
	valStageParse      sourcekitd.UID
	valStageSema       sourcekitd.UID

	// notifications
	keyNotification sourcekitd.UID

	valNotifyConnectionInterrupted sourcekitd.UID
	valNotifySemaEnabled           sourcekitd.UID
	valNotifyDocumentUpdate        sourcekitd.UID

	// response keys
	keyDiagnostics    sourcekitd.UID
	keyDescription    sourcekitd.UID
	keySeverity       sourcekitd.UID
	keyFixits         sourcekitd.UID
	keyKind           sourcekitd.UID
	keySubstructure   sourcekitd.UID
	keyBodyOffset     sourcekitd.UID
	keyBodyLength     sourcekitd.UID
	keyNameOffset     sourcekitd.UID
	keyNameLength     sourcekitd.UID
	keyElements       sourcekitd.UID
	keyResults        sourcekitd.UID
	keyActionName     sourcekitd.UID
	keyUSR            sourcekitd.UID
	keyTypeName       sourcekitd.UID
	keyAnnotatedDecl  sourcekitd.UID
	keyDocFullAsXML   sourcekitd.UID
	keyContainerName  sourcekitd.UID

	// value UIDs (diagnostic severities)
	valSeverityError   sourcekitd.UID
	valSeverityWarning sourcekitd.UID
	valSeverityNote    sourcekitd.UID
}

func newWireKeys(c sourcekitd.Client) wireKeys {
	keys := c.Keys()
	reqs := c.Requests()
	vals := c.Values()
	return wireKeys{
		reqEditorOpen:        reqs.UID("editor_open"),
		reqEditorClose:       reqs.UID("editor_close"),
		reqEditorReplaceText: reqs.UID("editor_replacetext"),
		reqRelatedIdents:     reqs.UID("relatedidents"),
		reqCrashExit:         reqs.UID("crash_exit"),
		reqCursorInfo:        reqs.UID("cursor_info"),
		reqCodeComplete:      reqs.UID("codecomplete"),
		reqSemanticRefactoring: reqs.UID("semantic_refactoring"),

		keyRequest:          keys.UID("request"),
		keyName:             keys.UID("name"),
		keySourceText:       keys.UID("sourcetext"),
		keyOffset:           keys.UID("offset"),
		keyLength:           keys.UID("length"),
		keyCompilerArgs:     keys.UID("compilerargs"),
		keySourceFile:       keys.UID("sourcefile"),
		keySyntacticOnly:    keys.UID("syntactic_only"),
		keySyntaxMap:        keys.UID("syntaxmap"),
		keyEnableSyntaxMap:  keys.UID("enable_syntaxmap"),
		keyRetrieveRefactor: keys.UID("retrieve_refactor_actions"),

		keyDiagnostics:   keys.UID("diagnostics"),
		keyDescription:   keys.UID("description"),
		keySeverity:      keys.UID("severity"),
		keyFixits:        keys.UID("fixits"),
		keyKind:          keys.UID("kind"),
		keySubstructure:  keys.UID("substructure"),
		keyBodyOffset:    keys.UID("bodyoffset"),
		keyBodyLength:    keys.UID("bodylength"),
		keyNameOffset:    keys.UID("nameoffset"),
		keyNameLength:    keys.UID("namelength"),
		keyElements:      keys.UID("elements"),
		keyResults:       keys.UID("results"),
		keyActionName:    keys.UID("actionname"),
		keyUSR:           keys.UID("usr"),
		keyTypeName:      keys.UID("typename"),
		keyAnnotatedDecl: keys.UID("annotated_decl"),
		keyDocFullAsXML:  keys.UID("doc_full_as_xml"),
		keyContainerName: keys.UID("containername"),

		keyDiagnosticStage: keys.UID("diagnostic_stage"),
		valStageParse:      vals.UID("source.diagnostic.stage.swift.parse"),
		valStageSema:       vals.UID("source.diagnostic.stage.swift.sema"),

		valSeverityError:   vals.UID("diagnostic.severity.error"),
		valSeverityWarning: vals.UID("diagnostic.severity.warning"),
		valSeverityNote:    vals.UID("diagnostic.severity.note"),

		keyNotification: keys.UID("notification"),

		valNotifyConnectionInterrupted: vals.UID("connection_interrupted"),
		valNotifySemaEnabled:           vals.UID("sema_enabled"),
		valNotifyDocumentUpdate:        vals.UID("documentupdate"),
	}
}
