package interaction

// DefaultSelectors is the ordered catalogue of interactive-element selectors
// tried by the catalogue pass. Order matters: generic ARIA toggles come
// first, framework-specific patterns after.
var DefaultSelectors = []string{
	// ARIA / HTML5
	`button:not([disabled])`,
	`[role="button"]:not([disabled])`,
	`input[type="button"]:not([disabled])`,
	`[aria-expanded="false"]`,
	`[aria-pressed="false"]`,
	`details:not([open]) > summary`,

	// Bootstrap 4 and 5
	`[data-toggle]`,
	`[data-bs-toggle]`,
	`.collapsed`,
	`.accordion-header:not(.active)`,
	`.accordion-button.collapsed`,

	// generic expand / collapse / toggle
	`.expandable:not(.expanded)`,
	`.collapsible:not(.active)`,
	`[class*="expand"]:not([class*="expanded"])`,
	`[class*="collapse"]:not([class*="collapsed"])`,
	`[class*="toggle"]:not([class*="toggled"])`,

	// tree and sidebar navigation
	`.tree-node:not(.expanded)`,
	`.tree-item:not(.is-expanded)`,
	`li[role="treeitem"]:not([aria-expanded="true"]) > span`,
	`.nav-item:not(.expanded) > .nav-link`,

	// tabs
	`[role="tab"]:not([aria-selected="true"])`,
	`.tab:not(.active)`,
	`.nav-tab:not(.active)`,

	// FAQ, cards, panels
	`.faq-question`,
	`.card-header:not(.active)`,
	`.panel-heading:not(.active)`,

	// load more / show more
	`.load-more`,
	`.show-more`,
	`.view-more`,
	`[class*="load-more"]`,
	`[class*="show-more"]`,
	`[class*="view-all"]`,

	// Oracle JET
	`.toc-item > .toc-link`,
	`.ohc-sidebar-item`,
	`.dropdown-toggle`,

	// Docusaurus
	`.menu__list-item--collapsed > .menu__link`,
	`.menu__caret`,
	`.tocCollapsibleButton_node_modules`,
	`button.clean-btn[class*="tocCollapsible"]`,
	`.theme-doc-sidebar-item-category > .menu__list-item-collapsible`,

	// MkDocs and Material for MkDocs
	`.md-nav__toggle:not(:checked) + .md-nav__link`,
	`label[for^="__nav"]`,
	`label[for^="__toc"]`,
	`.md-toggle`,
	`nav.md-nav .md-nav__item--nested > input[type="checkbox"]:not(:checked) ~ label`,

	// ReadTheDocs / Sphinx
	`.toctree-expand`,
	`.wy-menu .toctree-l1.current > a`,
	`li.toctree-l1:not(.current) > a`,

	// Confluence
	`.expand-control`,
	`.expand-control-text`,
	`.aui-expander-trigger`,
	`[data-macro-name="expand"] .expand-control`,
	`.aui-nav-child-trigger`,

	// Ant Design
	`.ant-collapse-header[aria-expanded="false"]`,
	`.ant-tree-switcher_close`,
	`.ant-menu-submenu-title`,

	// MUI
	`.MuiAccordion-root:not(.Mui-expanded) .MuiAccordionSummary-root`,
	`.MuiTreeItem-iconContainer`,
	`.MuiCollapse-hidden + .MuiButtonBase-root`,

	// Chakra UI
	`[data-expanded=""]`,
	`button.chakra-accordion__button[aria-expanded="false"]`,

	// Notion
	`.notion-toggle`,
	`.toggleBlock > div:first-child`,
	`[class*="toggleButton"]`,

	// Salesforce Lightning
	`lightning-accordion-section:not(.slds-is-open) .slds-button`,
	`.slds-accordion__summary-action`,
	`.slds-tree__item[aria-expanded="false"]`,

	// Zendesk Guide
	`[data-action="toggle"]`,
	`.collapsible-sidebar-toggle`,

	// GitBook
	`[class*="expandable"]:not([class*="expanded"])`,
	`div[class*="group/page"] > button`,

	// Nextra / Vercel docs
	`[data-state="closed"]`,
	`button[class*="sidebar"] + div[hidden]`,

	// SAP Fiori / UI5
	`[class*="sapM"][class*="Panel"]:not([class*="Expanded"]) .sapMPanelHdr`,
}

// DefaultBulkSelectors matches site-wide "expand all" controls that open a
// whole navigation tree in one click.
var DefaultBulkSelectors = []string{
	`button[title*="Expand" i]`,
	`button[aria-label*="Expand All" i]`,
	`button[aria-label*="Expand all" i]`,
	`[role="button"][title*="Expand" i]`,
	`[role="button"][aria-label*="Expand" i]`,

	// Oracle JET
	`#toggleTreeView`,
	`oj-button[title*="Expand" i]`,

	`[class*="expand-all"]`,
	`[class*="expandAll"]`,
	`[class*="expand_all"]`,
	`[id*="expand-all" i]`,
	`[id*="expandAll" i]`,
	`[id*="expand_all" i]`,

	// Confluence
	`.expand-all-button`,
	`#expand-all-link`,

	`[class*="ant-tree-expand-all"]`,

	// MkDocs
	`label[for="__nav"]`,

	// Sphinx
	`a.expand-all`,
}

// bulkTerms must appear in a bulk control's title or aria-label, or equal
// its text.
var bulkTerms = []string{"expand all", "show all", "open all", "expand"}

var expandTextWords = []string{"expand", "show", "more", "view", "open", "toggle", "collapse"}

var interactiveClassWords = []string{"expand", "collapse", "toggle", "accordion", "dropdown", "tree", "tab"}
